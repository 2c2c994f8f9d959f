package connector

import (
	"sort"

	"github.com/ntt-security-japan/gopowerautomate/pkg/core"
)

// Action types used by connector operations.
const (
	TypeOpenAPIConnection        = "OpenApiConnection"
	TypeOpenAPIConnectionWebhook = "OpenApiConnectionWebhook"
)

// environmentName is the expression every flow-management call uses to stay
// in the environment the running flow lives in.
const environmentName = "@workflow()?['tags/environmentName']"

// Param describes one operation parameter.
type Param struct {
	Name     string // Name callers use
	Key      string // Wire key under inputs.parameters, defaults to Name
	Required bool
	Default  any
}

// WireKey returns the key the parameter is rendered under.
func (p Param) WireKey() string {
	if p.Key != "" {
		return p.Key
	}
	return p.Name
}

// Operation describes one callable connector operation.
type Operation struct {
	Connector string
	ID        string
	Type      string
	Params    []Param
}

type opKey struct {
	connector string
	id        string
}

func req(name, key string) Param          { return Param{Name: name, Key: key, Required: true} }
func opt(name, key string, def any) Param { return Param{Name: name, Key: key, Default: def} }

var operations = map[opKey]Operation{}

func register(connector, typ, id string, params ...Param) {
	operations[opKey{connector, id}] = Operation{
		Connector: connector,
		ID:        id,
		Type:      typ,
		Params:    params,
	}
}

func init() {
	api := TypeOpenAPIConnection
	hook := TypeOpenAPIConnectionWebhook

	register(FlowManagement, api, "ListUserEnvironments")
	register(FlowManagement, api, "ListConnections",
		opt("environmentName", "", environmentName))
	register(FlowManagement, api, "DeleteFlow",
		opt("environmentName", "", environmentName),
		opt("flowName", "", "@workflow()?['tags']?['logicAppName']"))
	register(FlowManagement, api, "CreateFlow",
		opt("environmentName", "", environmentName),
		req("displayName", "Flow/properties/displayName"),
		req("definition", "Flow/properties/definition"),
		opt("state", "Flow/properties/state", "Started"),
		req("connectionReferences", "Flow/properties/connectionReferences"))

	register(Approvals, hook, "StartAndWaitForAnApproval",
		opt("approvalType", "", "Basic"),
		opt("title", "WebhookApprovalCreationInput/title", "Flow approval"),
		req("assignedTo", "WebhookApprovalCreationInput/assignedTo"),
		opt("enableNotifications", "WebhookApprovalCreationInput/enableNotifications", true),
		opt("enableReassignment", "WebhookApprovalCreationInput/enableReassignment", true))
	register(Approvals, hook, "WaitForAnApproval",
		req("approvalName", ""))

	register(Teams, api, "GetAllTeams")
	register(Teams, api, "GetTeam", req("teamId", ""))
	register(Teams, api, "GetChannelsForGroup", req("groupId", ""))
	register(Teams, api, "GetMessagesFromChannel", req("groupId", ""), req("channelId", ""))
	register(Teams, api, "GetChats", opt("chatType", "", "all"), opt("topic", "", "all"))
	register(Teams, api, "ListMembers",
		opt("threadType", "", "groupchat"),
		req("recipient", "body/recipient"))

	register(Dropbox, api, "CreateFile", req("folderPath", ""), req("name", ""), req("body", ""))
	register(Dropbox, api, "GetFileContent", req("id", ""), opt("inferContentType", "", true))
	register(Dropbox, api, "UpdateFile", req("id", ""), req("body", ""))
	register(Dropbox, api, "ListFolder", req("id", ""))
	register(Dropbox, api, "ListRootFolder")
	register(Dropbox, api, "CopyFile", req("source", ""), req("destination", ""), opt("overwrite", "", false))
	register(Dropbox, api, "DeleteFile", req("id", ""))
	register(Dropbox, api, "GetFileMetadata", req("id", ""))
	register(Dropbox, api, "ExtractFolderV2", req("source", ""), req("destination", ""), opt("overwrite", "", false))
	register(Dropbox, api, "GetFileContentByPath", req("path", ""), opt("inferContentType", "", true))
	register(Dropbox, api, "GetFileMetadataByPath", req("path", ""))

	transfer := func(source string) []Param {
		return []Param{
			req("dataset", ""),
			req(source, "parameters/"+source),
			req("destinationDataset", "parameters/destinationDataset"),
			req("destinationFolderPath", "parameters/destinationFolderPath"),
			opt("nameConflictBehavior", "parameters/nameConflictBehavior", 1),
		}
	}
	register(SharePoint, api, "CopyFileAsync", transfer("sourceFileId")...)
	register(SharePoint, api, "MoveFileAsync", transfer("sourceFileId")...)
	register(SharePoint, api, "CopyFolderAsync", transfer("sourceFolderId")...)
	register(SharePoint, api, "MoveFolderAsync", transfer("sourceFolderId")...)
	register(SharePoint, api, "GetFileItem", req("dataset", ""), req("table", ""), req("id", ""))
	register(SharePoint, api, "GetItemChanges",
		req("dataset", ""), req("table", ""), req("id", ""), req("since", ""),
		opt("includeDrafts", "", false))
	register(SharePoint, api, "GrantAccess",
		req("dataset", ""), req("table", ""), req("id", ""),
		req("recipients", "parameter/recipients"), req("roleValue", "parameter/roleValue"))
	register(SharePoint, api, "CreateFile", req("dataset", ""), req("folderPath", ""), req("name", ""), req("body", ""))
	register(SharePoint, api, "ListFolder", req("dataset", ""), req("id", ""))
	register(SharePoint, api, "CreateNewFolder", req("dataset", ""), req("table", ""), req("path", "parameters/path"))
	register(SharePoint, api, "GetFileContentByPath", req("dataset", ""), req("path", ""), opt("inferContentType", "", true))
	register(SharePoint, api, "GetFileMetadataByPath", req("dataset", ""), req("path", ""))
	register(SharePoint, api, "GetFileContent", req("dataset", ""), req("id", ""), opt("inferContentType", "", true))
	register(SharePoint, api, "GetFileMetadata", req("dataset", ""), req("id", ""))
	register(SharePoint, api, "UpdateFile", req("dataset", ""), req("id", ""), req("body", ""))
	register(SharePoint, api, "DeleteFile", req("dataset", ""), req("id", ""))
	register(SharePoint, api, "GetFolderMetadata", req("dataset", ""), req("id", ""))
	register(SharePoint, api, "GetTables", req("dataset", ""))
	register(SharePoint, api, "ListRootFolder", req("dataset", ""))
	register(SharePoint, api, "ExtractFolderV2",
		req("dataset", ""), req("source", ""), req("destination", ""), opt("overwrite", "", false))
	register(SharePoint, api, "HttpRequest",
		req("dataset", ""),
		req("method", "parameters/method"),
		req("uri", "parameters/uri"),
		opt("headers", "parameters/headers", nil),
		opt("body", "parameters/body", nil))

	register(Office365, api, "SendEmailV2",
		req("to", "emailMessage/To"),
		req("subject", "emailMessage/Subject"),
		req("body", "emailMessage/Body"),
		opt("importance", "emailMessage/Importance", "Normal"))
	register(Office365, api, "DeleteEmail_V2", req("messageId", ""))
	register(Office365, api, "ExportEmail_V2", req("messageId", ""))
	register(Office365, api, "FindMeetingTimes_V2", req("activityDomain", "body/ActivityDomain"))
	register(Office365, api, "Flag_V2", req("messageId", ""), req("flagStatus", "body/flag/flagStatus"))
	register(Office365, api, "ForwardEmail_V2", req("messageId", "message_id"), req("toRecipients", "body/ToRecipients"))
	register(Office365, api, "GetAttachment_V2", req("messageId", ""), req("attachmentId", ""))
	register(Office365, api, "GetEventsCalendarViewV3",
		req("calendarId", ""), req("startDateTimeUtc", ""), req("endDateTimeUtc", ""))
	register(Office365, api, "CalendarGetTables_V2")
	register(Office365, api, "GetEmailV2", req("messageId", ""), opt("includeAttachments", "", false))
	register(Office365, api, "GetEmailsV3",
		opt("folderPath", "", "Inbox"),
		opt("fetchOnlyUnread", "", true),
		opt("includeAttachments", "", false),
		opt("top", "", 10),
		opt("importance", "", "Any"),
		opt("fetchOnlyWithAttachment", "", false))
	register(Office365, api, "MarkAsRead_V3", req("messageId", ""))
	register(Office365, api, "MoveV2", req("messageId", ""), req("folderPath", ""))
	register(Office365, api, "ReplyToV3", req("messageId", ""), req("body", "replyParameters/Body"))
	register(Office365, hook, "SendMailWithOptions",
		req("to", "optionsEmailSubscription/Message/To"),
		req("subject", "optionsEmailSubscription/Message/Subject"),
		req("options", "optionsEmailSubscription/Message/Options"),
		opt("importance", "optionsEmailSubscription/Message/Importance", "Normal"),
		opt("hideHTMLMessage", "optionsEmailSubscription/Message/HideHTMLMessage", false),
		opt("showHTMLConfirmationDialog", "optionsEmailSubscription/Message/ShowHTMLConfirmationDialog", false),
		opt("hideMicrosoftFooter", "optionsEmailSubscription/Message/HideMicrosoftFooter", false))
	register(Office365, api, "SetAutomaticRepliesSetting_V2",
		req("status", "body/automaticRepliesSetting/status"),
		req("externalAudience", "body/automaticRepliesSetting/externalAudience"))
}

// LookupOperation returns the catalogued operation for a connector.
func LookupOperation(connectorName, id string) (Operation, error) {
	c, err := Lookup(connectorName)
	if err != nil {
		return Operation{}, err
	}
	op, ok := operations[opKey{c.Name, id}]
	if !ok {
		return Operation{}, core.ErrUnknownOperation.WithSubject(c.Name + "/" + id)
	}
	return op, nil
}

// Operations returns the operations catalogued for a connector, sorted by id.
func Operations(connectorName string) []Operation {
	c, err := Lookup(connectorName)
	if err != nil {
		return nil
	}
	var res []Operation
	for k, op := range operations {
		if k.connector == c.Name {
			res = append(res, op)
		}
	}
	sort.Slice(res, func(i, j int) bool {
		return res[i].ID < res[j].ID
	})
	return res
}

// Param returns the named parameter of the operation.
func (o Operation) Param(name string) (Param, bool) {
	for _, p := range o.Params {
		if p.Name == name {
			return p, true
		}
	}
	return Param{}, false
}

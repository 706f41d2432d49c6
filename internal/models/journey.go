package models

import "time"

// JourneyStatus is the roll-up status of an authorization journey
type JourneyStatus string

const (
	// JourneyConnectionsFlowStarted - at least one downstream connection flow is still pending
	JourneyConnectionsFlowStarted JourneyStatus = "CONNECTIONS_FLOW_STARTED"
	// JourneyMcpAuthFlowStarted - all required connections are authorized, the
	// client-facing code flow is in progress (covers code issued but unexchanged)
	JourneyMcpAuthFlowStarted JourneyStatus = "MCP_AUTH_FLOW_STARTED"
	// JourneyAuthorizationCodeExchanged - terminal success
	JourneyAuthorizationCodeExchanged JourneyStatus = "AUTHORIZATION_CODE_EXCHANGED"
	// JourneyDenied - resource owner rejected consent at the broker prompt
	JourneyDenied JourneyStatus = "DENIED"
	// JourneyFailed - a downstream connection flow failed
	JourneyFailed JourneyStatus = "FAILED"
	// JourneyExpired - abandoned and garbage-collected
	JourneyExpired JourneyStatus = "EXPIRED"
)

// Terminal reports whether a journey in this status must never advance again
func (s JourneyStatus) Terminal() bool {
	switch s {
	case JourneyAuthorizationCodeExchanged, JourneyDenied, JourneyFailed, JourneyExpired:
		return true
	}
	return false
}

// McpFlowStatus is the status of the client-facing OAuth code flow
type McpFlowStatus string

const (
	McpFlowClientRegistered          McpFlowStatus = "CLIENT_REGISTERED"
	McpFlowStarted                   McpFlowStatus = "MCP_AUTH_FLOW_STARTED"
	McpFlowAuthorizationCodeIssued   McpFlowStatus = "AUTHORIZATION_CODE_ISSUED"
	McpFlowAuthorizationCodeExchange McpFlowStatus = "AUTHORIZATION_CODE_EXCHANGED"
)

// ConnectionFlowStatus is the status of one downstream provider sub-flow
type ConnectionFlowStatus string

const (
	ConnectionFlowPending    ConnectionFlowStatus = "PENDING"
	ConnectionFlowAuthorized ConnectionFlowStatus = "AUTHORIZED"
	ConnectionFlowFailed     ConnectionFlowStatus = "FAILED"
)

// McpAuthorizationFlow is the client-facing OAuth code flow embedded in a journey
type McpAuthorizationFlow struct {
	Status                     McpFlowStatus `json:"status" dynamodbav:"Status"`
	Scope                      []string      `json:"scope" dynamodbav:"Scope"`
	CodeChallenge              string        `json:"-" dynamodbav:"CodeChallenge"`
	AuthorizationCode          string        `json:"-" dynamodbav:"AuthorizationCode"`
	AuthorizationCodeExpiresAt time.Time     `json:"authorizationCodeExpiresAt,omitempty" dynamodbav:"AuthorizationCodeExpiresAt"`
	AuthorizationCodeUsed      bool          `json:"authorizationCodeUsed" dynamodbav:"AuthorizationCodeUsed"`
}

// ConnectionAuthorizationFlow is one downstream provider sub-flow embedded in
// a journey. Downstream tokens are stored encrypted.
type ConnectionAuthorizationFlow struct {
	Id                     string               `json:"id" dynamodbav:"Id"`
	ConnectionId           string               `json:"connectionId" dynamodbav:"ConnectionId"`
	ConnectionName         string               `json:"connectionName" dynamodbav:"ConnectionName"`
	Status                 ConnectionFlowStatus `json:"status" dynamodbav:"Status"`
	DownstreamScope        string               `json:"-" dynamodbav:"DownstreamScope"`
	DownstreamAccessToken  string               `json:"-" dynamodbav:"DownstreamAccessToken"`
	DownstreamRefreshToken string               `json:"-" dynamodbav:"DownstreamRefreshToken"`
	TokenExpiresAt         time.Time            `json:"tokenExpiresAt,omitempty" dynamodbav:"TokenExpiresAt"`
	FailureReason          string               `json:"failureReason,omitempty" dynamodbav:"FailureReason"`
	CreatedAt              time.Time            `json:"createdAt" dynamodbav:"CreatedAt"`
	UpdatedAt              time.Time            `json:"updatedAt" dynamodbav:"UpdatedAt"`
}

// AuthorizationJourney is the aggregate root for one authorization attempt.
// It owns its embedded flows; the referenced client and connections are
// looked up by id, never embedded. Version backs the compare-and-set writes
// that serialize callback/exchange races.
type AuthorizationJourney struct {
	Id                           string                        `json:"id" dynamodbav:"Id"`
	ClientId                     string                        `json:"clientId" dynamodbav:"ClientId"`
	ServerId                     string                        `json:"serverId" dynamodbav:"ServerId"`
	Subject                      string                        `json:"-" dynamodbav:"Subject"`
	Resource                     string                        `json:"resource" dynamodbav:"Resource"`
	RedirectUri                  string                        `json:"redirectUri" dynamodbav:"RedirectUri"`
	State                        string                        `json:"-" dynamodbav:"State"`
	Status                       JourneyStatus                 `json:"status" dynamodbav:"Status"`
	McpAuthorizationFlow         McpAuthorizationFlow          `json:"mcpAuthorizationFlow" dynamodbav:"McpAuthorizationFlow"`
	ConnectionAuthorizationFlows []ConnectionAuthorizationFlow `json:"connectionAuthorizationFlows" dynamodbav:"ConnectionAuthorizationFlows"`
	Version                      int64                         `json:"-" dynamodbav:"Version"`
	// Stored as epoch seconds so the sweeper's range comparisons are numeric
	CreatedAt time.Time `json:"createdAt" dynamodbav:"CreatedAt,unixtime"`
	UpdatedAt time.Time `json:"updatedAt" dynamodbav:"UpdatedAt,unixtime"`
}

// PendingConnectionFlows returns the sub-flows still waiting on a downstream grant
func (j *AuthorizationJourney) PendingConnectionFlows() []ConnectionAuthorizationFlow {
	var pending []ConnectionAuthorizationFlow
	for _, flow := range j.ConnectionAuthorizationFlows {
		if flow.Status == ConnectionFlowPending {
			pending = append(pending, flow)
		}
	}
	return pending
}

// AllConnectionsAuthorized reports whether every required downstream flow has
// been granted. Vacuously true for journeys with no mapped connections.
func (j *AuthorizationJourney) AllConnectionsAuthorized() bool {
	for _, flow := range j.ConnectionAuthorizationFlows {
		if flow.Status != ConnectionFlowAuthorized {
			return false
		}
	}
	return true
}

// ConnectionFlowById finds an embedded sub-flow by its id
func (j *AuthorizationJourney) ConnectionFlowById(flowId string) *ConnectionAuthorizationFlow {
	for i := range j.ConnectionAuthorizationFlows {
		if j.ConnectionAuthorizationFlows[i].Id == flowId {
			return &j.ConnectionAuthorizationFlows[i]
		}
	}
	return nil
}

// ConnectionFlowByConnectionId finds an embedded sub-flow by connection id
func (j *AuthorizationJourney) ConnectionFlowByConnectionId(connectionId string) *ConnectionAuthorizationFlow {
	for i := range j.ConnectionAuthorizationFlows {
		if j.ConnectionAuthorizationFlows[i].ConnectionId == connectionId {
			return &j.ConnectionAuthorizationFlows[i]
		}
	}
	return nil
}

// ConsentScope pairs a scope identifier with its human description for display
type ConsentScope struct {
	ScopeId     string `json:"scopeId"`
	Description string `json:"description"`
}

// ConsentConnection names a downstream provider the resource owner will be
// sent to after approving
type ConsentConnection struct {
	FlowId         string `json:"flowId"`
	ConnectionName string `json:"connectionName"`
}

// ConsentDescriptor is the presentable summary of a journey handed to the
// external consent UI. The broker itself never renders anything.
type ConsentDescriptor struct {
	FlowId      string              `json:"flow_id"`
	ClientName  string              `json:"client_name"`
	ServerName  string              `json:"server_name"`
	Scopes      []ConsentScope      `json:"scopes"`
	Connections []ConsentConnection `json:"connections"`
	RedirectUri string              `json:"redirect_uri"`
}

// ConsentDecision is the resource owner's answer posted back by the consent UI
type ConsentDecision struct {
	FlowId   string `json:"flow_id" binding:"required"`
	Approved bool   `json:"approved"`
	Subject  string `json:"subject"`
}

// ConsentResult tells the consent UI what to do next after a decision
type ConsentResult struct {
	// RedirectUri is where to send the user agent next: the first downstream
	// authorize URL while connections are pending, or the client redirect URI
	// carrying code+state once the journey completes (or an error on denial).
	RedirectUri string        `json:"redirect_uri"`
	Status      JourneyStatus `json:"status"`
}

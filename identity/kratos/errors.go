package kratos

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	kratosclient "github.com/ory/kratos-client-go"

	"github.com/jrsteele09/servicedesk/identity"
)

// Kratos UI message ids that map onto identity error codes
const (
	msgPasswordPolicy     = 4000005
	msgInvalidCredentials = 4000006
	msgIdentifierExists   = 4000007
	msgAddressNotVerified = 4000010
)

type uiText struct {
	ID   int64  `json:"id"`
	Text string `json:"text"`
	Type string `json:"type"`
}

type errorBody struct {
	UI *struct {
		Messages []uiText `json:"messages"`
		Nodes    []struct {
			Messages []uiText `json:"messages"`
		} `json:"nodes"`
	} `json:"ui"`
	Error *struct {
		Message string `json:"message"`
		Reason  string `json:"reason"`
	} `json:"error"`
}

// messages returns flow level messages first, then node messages
func (b errorBody) messages() []uiText {
	if b.UI == nil {
		return nil
	}
	out := make([]uiText, 0, len(b.UI.Messages))
	out = append(out, b.UI.Messages...)
	for _, n := range b.UI.Nodes {
		out = append(out, n.Messages...)
	}
	return out
}

// transformKratosError turns a failed Kratos call into an AuthError whose message
// is the text Kratos wants shown to the user
func transformKratosError(err error, httpResp *http.Response, operation string) error {
	var apiErr *kratosclient.GenericOpenAPIError
	if errors.As(err, &apiErr) {
		if authErr := parseErrorBody(apiErr.Body(), err); authErr != nil {
			return authErr
		}
	}

	status := getHTTPStatus(httpResp)
	switch {
	case status == 0:
		return identity.NewAuthError(identity.CodeUnavailable, "Unable to reach the identity service", err)
	case status == http.StatusUnauthorized:
		return identity.NewAuthError(identity.CodeInvalidCredentials, "Invalid login credentials", err)
	case status >= http.StatusInternalServerError:
		return identity.NewAuthError(identity.CodeUnavailable, fmt.Sprintf("Identity service error (%d)", status), err)
	}
	return identity.NewAuthError(identity.CodeUnknown, fmt.Sprintf("Kratos %s failed", operation), err)
}

func parseErrorBody(body []byte, cause error) *identity.AuthError {
	if len(body) == 0 {
		return nil
	}
	var parsed errorBody
	if json.Unmarshal(body, &parsed) != nil {
		return nil
	}

	for _, m := range parsed.messages() {
		if m.Type != "error" {
			continue
		}
		return identity.NewAuthError(codeForMessage(m.ID), m.Text, cause)
	}
	if parsed.Error != nil {
		msg := parsed.Error.Reason
		if msg == "" {
			msg = parsed.Error.Message
		}
		if msg != "" {
			return identity.NewAuthError(identity.CodeUnknown, msg, cause)
		}
	}
	return nil
}

func codeForMessage(id int64) string {
	switch id {
	case msgInvalidCredentials:
		return identity.CodeInvalidCredentials
	case msgIdentifierExists:
		return identity.CodeUserExists
	case msgAddressNotVerified:
		return identity.CodeEmailNotConfirmed
	case msgPasswordPolicy:
		return identity.CodeWeakPassword
	}
	return identity.CodeUnknown
}

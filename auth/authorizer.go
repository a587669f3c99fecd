package auth

import (
	"context"
	"log/slog"
	"strings"

	"github.com/aws/aws-lambda-go/events"
)

// Header names read by the authorizer and the API.
const (
	HeaderUserID        = "X-User-Id"
	HeaderAuthorization = "Authorization"

	// ContextUserID is the authorizer context key carrying the verified user id.
	ContextUserID = "userId"
)

// TokenVerifier verifies a raw bearer token.
type TokenVerifier interface {
	Verify(ctx context.Context, raw string) (*Identity, error)
}

// Authorizer is an API Gateway REQUEST authorizer.
type Authorizer struct {
	verifier TokenVerifier
	logger   *slog.Logger
}

// NewAuthorizer creates an Authorizer. A nil logger uses slog.Default().
func NewAuthorizer(v TokenVerifier, logger *slog.Logger) *Authorizer {
	if logger == nil {
		logger = slog.Default()
	}
	return &Authorizer{verifier: v, logger: logger}
}

// Authorize verifies the request's bearer token and decides against the
// claimed user id header. Verification failures become a Deny.
func (a *Authorizer) Authorize(ctx context.Context, headers map[string]string, resource string) Decision {
	claimed := Header(headers, HeaderUserID)

	var id *Identity
	if token, ok := BearerToken(Header(headers, HeaderAuthorization)); ok {
		verified, err := a.verifier.Verify(ctx, token)
		if err != nil {
			a.logger.WarnContext(ctx, "token verification failed",
				"claimedUserId", claimed,
				"error", err,
			)
		} else {
			id = verified
		}
	}

	d := Decide(claimed, id, resource)
	a.logger.InfoContext(ctx, "authorization decision",
		"effect", d.Effect,
		"principal", d.PrincipalID,
		"reason", d.Reason,
	)
	return d
}

// Handle is the Lambda entry point. It never returns an error; every failure
// is expressed as a Deny policy.
func (a *Authorizer) Handle(ctx context.Context, req events.APIGatewayCustomAuthorizerRequestTypeRequest) (events.APIGatewayCustomAuthorizerResponse, error) {
	return PolicyResponse(a.Authorize(ctx, req.Headers, req.MethodArn)), nil
}

// PolicyResponse renders d as an IAM policy for API Gateway.
func PolicyResponse(d Decision) events.APIGatewayCustomAuthorizerResponse {
	resp := events.APIGatewayCustomAuthorizerResponse{
		PrincipalID: d.PrincipalID,
		PolicyDocument: events.APIGatewayCustomAuthorizerPolicy{
			Version: "2012-10-17",
			Statement: []events.IAMPolicyStatement{{
				Action:   []string{"execute-api:Invoke"},
				Effect:   string(d.Effect),
				Resource: []string{d.Resource},
			}},
		},
	}
	if d.Allowed() {
		resp.Context = map[string]any{ContextUserID: d.PrincipalID}
	}
	return resp
}

// Header returns the value of name in headers, ignoring case.
func Header(headers map[string]string, name string) string {
	if v, ok := headers[name]; ok {
		return v
	}
	for k, v := range headers {
		if strings.EqualFold(k, name) {
			return v
		}
	}
	return ""
}

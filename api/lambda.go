package api

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"net/http"

	"github.com/aws/aws-lambda-go/events"

	"github.com/jacentio/todo/auth"
	"github.com/jacentio/todo/model"
)

var responseHeaders = map[string]string{
	"Content-Type":                 "application/json",
	"Access-Control-Allow-Origin":  "*",
	"Access-Control-Allow-Headers": "Content-Type,Authorization,X-User-Id",
}

// HandleLambda adapts an API Gateway proxy event. Errors are always encoded
// in the response; the returned error is reserved for encoding failures.
//
// When the event carries an authorizer context, the user id it verified must
// match the X-User-Id header or the request is rejected with 403.
func (h *Handler) HandleLambda(ctx context.Context, ev events.APIGatewayProxyRequest) (events.APIGatewayProxyResponse, error) {
	req := Request{
		Method:   ev.HTTPMethod,
		Resource: ev.Resource,
		Headers:  ev.Headers,
		Query:    ev.QueryStringParameters,
		Body:     []byte(ev.Body),
	}
	if req.Resource == "" {
		req.Resource = ev.Path
	}

	var resp Response
	if verified, ok := ev.RequestContext.Authorizer[auth.ContextUserID]; ok {
		if id, _ := verified.(string); id == "" || id != auth.Header(req.Headers, auth.HeaderUserID) {
			h.logger.WarnContext(ctx, "user id does not match authorizer context",
				"method", req.Method,
				"resource", req.Resource,
			)
			resp = Response{Status: http.StatusForbidden, Body: Body{
				Message: "access denied",
				Error:   "user id does not match the authorized principal",
			}}
		}
	}
	if resp.Status == 0 && ev.IsBase64Encoded {
		body, err := base64.StdEncoding.DecodeString(ev.Body)
		if err != nil {
			resp = h.fail(ctx, req, model.Invalid("body", "invalid base64 encoding"))
		}
		req.Body = body
	}
	if resp.Status == 0 {
		resp = h.Handle(ctx, req)
	}

	body, err := json.Marshal(resp.Body)
	if err != nil {
		h.logger.ErrorContext(ctx, "encode response", "error", err)
		return events.APIGatewayProxyResponse{StatusCode: http.StatusInternalServerError}, err
	}

	headers := make(map[string]string, len(responseHeaders))
	for k, v := range responseHeaders {
		headers[k] = v
	}
	return events.APIGatewayProxyResponse{
		StatusCode: resp.Status,
		Headers:    headers,
		Body:       string(body),
	}, nil
}

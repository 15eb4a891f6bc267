// Package response builds API Gateway v2 HTTP responses for the
// paper-search Lambda handler.
package response

import (
	"encoding/json"

	"github.com/aws/aws-lambda-go/events"
)

// JSON marshals data as the body of a JSON API Gateway v2 response. If
// marshaling fails, a hand-written 500 body is returned instead so the
// caller never has to special-case an encode failure.
func JSON(statusCode int, data interface{}) events.APIGatewayV2HTTPResponse {
	body, err := json.Marshal(data)
	if err != nil {
		return events.APIGatewayV2HTTPResponse{
			StatusCode: 500,
			Headers:    map[string]string{"content-type": "application/json"},
			Body:       `{"message":"Failed to encode response."}`,
		}
	}

	return events.APIGatewayV2HTTPResponse{
		StatusCode: statusCode,
		Headers:    map[string]string{"content-type": "application/json"},
		Body:       string(body),
	}
}

// ErrorBody is the shape of every error response (§6/§7 of the spec).
type ErrorBody struct {
	Message string `json:"message"`
}

// Error is a convenience wrapper around JSON for the common
// {"message": "..."} error shape.
func Error(statusCode int, message string) events.APIGatewayV2HTTPResponse {
	return JSON(statusCode, ErrorBody{Message: message})
}

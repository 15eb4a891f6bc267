// Command papersearch-localtest drives the handler directly against a
// synthetic API Gateway event, the Go equivalent of the original's
// local_test_search.py harness: no Lambda runtime, no deployed API
// Gateway, just a hand-built event and a printed response.
package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"

	"github.com/aws/aws-lambda-go/events"
	"github.com/joho/godotenv"

	"github.com/dantee-nv/paper-search/api/papersearch"
)

func main() {
	_ = godotenv.Load()

	queryContext := "transformer architectures for long document summarization"
	if len(os.Args) > 1 {
		queryContext = os.Args[1]
	}

	body, err := json.Marshal(map[string]interface{}{
		"context": queryContext,
		"k":       5,
	})
	if err != nil {
		fmt.Fprintln(os.Stderr, "failed to build request body:", err)
		os.Exit(1)
	}

	req := events.APIGatewayV2HTTPRequest{
		Body: string(body),
	}
	req.RequestContext.RequestID = "local-test"
	req.RequestContext.HTTP.SourceIP = "127.0.0.1"

	resp, err := papersearch.Handle(context.Background(), req)
	if err != nil {
		fmt.Fprintln(os.Stderr, "handler returned an error:", err)
		os.Exit(1)
	}

	fmt.Println("status:", resp.StatusCode)
	fmt.Println(resp.Body)
}

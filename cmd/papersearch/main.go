// Command papersearch is the Lambda entry point for the paper search
// and reranking handler, wired the way the teacher's scripts wire a
// standalone main() around a shared lib package.
package main

import (
	"github.com/aws/aws-lambda-go/lambda"
	"github.com/joho/godotenv"

	"github.com/dantee-nv/paper-search/api/papersearch"
	"github.com/dantee-nv/paper-search/lib/logger"
)

func main() {
	if err := godotenv.Load(); err != nil {
		logger.Warn("no .env file loaded", map[string]interface{}{"error": err.Error()})
	}

	lambda.Start(papersearch.Handle)
}

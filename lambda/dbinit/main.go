// Command dbinit is the database bootstrap Lambda. It is built by the RDS
// stack's asset bundling.
package main

import (
	"os"

	"adoption-infra/dbinit"
	"adoption-infra/logging"

	"github.com/aws/aws-lambda-go/lambda"
	"github.com/aws/aws-sdk-go/aws/session"
	"github.com/aws/aws-sdk-go/service/secretsmanager"
)

func main() {
	logger := logging.NewJSON(os.Getenv("LOG_LEVEL"))
	defer logger.Sync() //nolint:errcheck
	logging.Install(logger)

	sess := session.Must(session.NewSession())
	handler := dbinit.NewHandler(secretsmanager.New(sess))
	lambda.Start(handler.Handle)
}

package dbinit

import (
	"context"
	"fmt"

	"github.com/aws/aws-lambda-go/cfn"
	"github.com/aws/aws-sdk-go/service/secretsmanager/secretsmanageriface"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/pkg/errors"
	"go.uber.org/zap"
)

// Conn is the part of *pgx.Conn the handler uses.
type Conn interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Close(ctx context.Context) error
}

// ConnectFunc opens a connection from a DSN.
type ConnectFunc func(ctx context.Context, dsn string) (Conn, error)

func connectPgx(ctx context.Context, dsn string) (Conn, error) {
	conn, err := pgx.Connect(ctx, dsn)
	if err != nil {
		return nil, err
	}
	return conn, nil
}

// Properties are the custom resource properties set by the RDS stack.
type Properties struct {
	SecretArn  string
	Database   string
	Extensions []string
	Schemas    []string
}

// Handler is the onEvent handler of the bootstrap custom resource.
type Handler struct {
	Secrets secretsmanageriface.SecretsManagerAPI
	Connect ConnectFunc
}

// NewHandler returns a Handler that connects with pgx.
func NewHandler(secrets secretsmanageriface.SecretsManagerAPI) *Handler {
	return &Handler{
		Secrets: secrets,
		Connect: connectPgx,
	}
}

// Handle applies the bootstrap statements on Create and Update. Delete leaves
// the database untouched, it goes away with the cluster.
func (h *Handler) Handle(ctx context.Context, event cfn.Event) (map[string]interface{}, error) {
	log := zap.L().With(
		zap.String("request_type", string(event.RequestType)),
		zap.String("logical_id", event.LogicalResourceID),
	)

	props, err := ParseProperties(event.ResourceProperties)
	if err != nil {
		return nil, err
	}
	physicalID := event.PhysicalResourceID
	if physicalID == "" {
		physicalID = fmt.Sprintf("adoption-db-bootstrap-%s", props.Database)
	}

	if event.RequestType == cfn.RequestDelete {
		log.Info("nothing to do on delete")
		return response(physicalID, 0), nil
	}

	stmts := Statements(props.Extensions, props.Schemas)
	if len(stmts) == 0 {
		log.Info("no statements to run")
		return response(physicalID, 0), nil
	}

	creds, err := FetchCredentials(ctx, h.Secrets, props.SecretArn)
	if err != nil {
		return nil, err
	}
	conn, err := h.Connect(ctx, creds.DSN(props.Database))
	if err != nil {
		return nil, errors.Wrapf(err, "connecting to %s", creds.Host)
	}
	defer func() {
		if err := conn.Close(ctx); err != nil {
			log.Warn("closing connection", zap.Error(err))
		}
	}()

	for _, stmt := range stmts {
		log.Info("executing", zap.String("sql", stmt))
		if _, err := conn.Exec(ctx, stmt); err != nil {
			return nil, errors.Wrapf(err, "executing %q", stmt)
		}
	}
	return response(physicalID, len(stmts)), nil
}

func response(physicalID string, applied int) map[string]interface{} {
	return map[string]interface{}{
		"PhysicalResourceId": physicalID,
		"Data": map[string]interface{}{
			"Statements": applied,
		},
	}
}

// ParseProperties reads the resource properties. CloudFormation passes
// lists as []interface{} of strings.
func ParseProperties(m map[string]interface{}) (Properties, error) {
	var p Properties
	var err error
	if p.SecretArn, err = stringProp(m, "SecretArn"); err != nil {
		return p, err
	}
	if p.SecretArn == "" {
		return p, errors.New("SecretArn is required")
	}
	if p.Database, err = stringProp(m, "Database"); err != nil {
		return p, err
	}
	if p.Extensions, err = listProp(m, "Extensions"); err != nil {
		return p, err
	}
	if p.Schemas, err = listProp(m, "Schemas"); err != nil {
		return p, err
	}
	return p, nil
}

func stringProp(m map[string]interface{}, key string) (string, error) {
	v, ok := m[key]
	if !ok || v == nil {
		return "", nil
	}
	s, ok := v.(string)
	if !ok {
		return "", errors.Errorf("%s: expected a string, got %T", key, v)
	}
	return s, nil
}

func listProp(m map[string]interface{}, key string) ([]string, error) {
	v, ok := m[key]
	if !ok || v == nil {
		return nil, nil
	}
	items, ok := v.([]interface{})
	if !ok {
		return nil, errors.Errorf("%s: expected a list, got %T", key, v)
	}
	out := make([]string, 0, len(items))
	for i, item := range items {
		s, ok := item.(string)
		if !ok {
			return nil, errors.Errorf("%s[%d]: expected a string, got %T", key, i, item)
		}
		out = append(out, s)
	}
	return out, nil
}

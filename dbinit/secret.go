package dbinit

import (
	"context"
	"encoding/json"
	"net"
	"net/url"
	"strconv"

	"github.com/aws/aws-sdk-go/aws"
	"github.com/aws/aws-sdk-go/service/secretsmanager"
	"github.com/aws/aws-sdk-go/service/secretsmanager/secretsmanageriface"
	"github.com/pkg/errors"
)

// Credentials is the JSON document RDS stores in a generated cluster secret.
type Credentials struct {
	Username string `json:"username"`
	Password string `json:"password"`
	Host     string `json:"host"`
	Port     int    `json:"port"`
	DBName   string `json:"dbname"`
}

// FetchCredentials reads and decodes the secret identified by arn.
func FetchCredentials(ctx context.Context, api secretsmanageriface.SecretsManagerAPI, arn string) (*Credentials, error) {
	resp, err := api.GetSecretValueWithContext(ctx, &secretsmanager.GetSecretValueInput{
		SecretId: aws.String(arn),
	})
	if err != nil {
		return nil, errors.Wrap(err, "reading database secret")
	}
	if resp.SecretString == nil {
		return nil, errors.New("database secret has no string value")
	}

	var c Credentials
	if err := json.Unmarshal([]byte(*resp.SecretString), &c); err != nil {
		return nil, errors.Wrap(err, "decoding database secret")
	}
	if c.Host == "" || c.Username == "" {
		return nil, errors.New("database secret is missing host or username")
	}
	if c.Port == 0 {
		c.Port = 5432
	}
	return &c, nil
}

// DSN is the connection URL for database, or for the secret's own database
// when database is empty. TLS is required.
func (c *Credentials) DSN(database string) string {
	if database == "" {
		database = c.DBName
	}
	u := url.URL{
		Scheme:   "postgres",
		User:     url.UserPassword(c.Username, c.Password),
		Host:     net.JoinHostPort(c.Host, strconv.Itoa(c.Port)),
		Path:     "/" + database,
		RawQuery: "sslmode=require",
	}
	return u.String()
}

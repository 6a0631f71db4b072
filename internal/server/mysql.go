package server

import (
	"context"
	"strings"

	"portal-relay/internal/metrics"
	"portal-relay/internal/sqlexec"
)

// Opener is the database side of mysql_query. Each Open is a fresh connection.
type Opener interface {
	Open(ctx context.Context) (sqlexec.Session, error)
}

// MySQLQueryParams are the parameters of mysql_query.
type MySQLQueryParams struct {
	Query string `json:"query" jsonschema_description:"A single SQL statement. Reads return rows, writes return affectedRows."`
}

func newMySQLQueryTool(db Opener) Tool {
	return newTypedTool(KindMySQLQuery,
		"Run one SQL statement against the portal database.",
		func(p *MySQLQueryParams) error {
			if strings.TrimSpace(p.Query) == "" {
				return missingParam("query")
			}
			return nil
		},
		func(ctx context.Context, p MySQLQueryParams) (any, error) {
			metrics.DownstreamSessions.WithLabelValues("mysql").Inc()
			s, err := db.Open(ctx)
			if err != nil {
				return nil, err
			}
			defer s.Close()
			return s.Run(ctx, p.Query)
		},
	)
}

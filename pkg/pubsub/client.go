package pubsub

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"strings"

	pubsub "cloud.google.com/go/pubsub/v2"
	"cloud.google.com/go/pubsub/v2/apiv1/pubsubpb"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"github.com/foodrelief/relief-backend/pkg/config"
	"github.com/foodrelief/relief-backend/pkg/logger"
)

// Client holds a Pub/Sub v2 connection scoped to the phase and disbursement
// topics. Subscriptions are owned by downstream consumers.
type Client struct {
	conn    *pubsub.Client
	project string
	topics  []string
}

var (
	errProjectIDRequired = errors.New("gcp project id is required")
	errNoTopics          = errors.New("pubsub topic name is required")
)

func NewClient(ctx context.Context, gcp config.GCPConfig, cfg config.PubSubConfig, logg *logger.Logger) (*Client, error) {
	project := strings.TrimSpace(gcp.ProjectID)
	if project == "" {
		return nil, errProjectIDRequired
	}
	topics := workflowTopics(cfg)
	if len(topics) == 0 {
		return nil, errNoTopics
	}

	conn, err := pubsub.NewClient(ctx, project)
	if err != nil {
		return nil, fmt.Errorf("creating pubsub client: %w", err)
	}
	c := &Client{conn: conn, project: project, topics: topics}
	if err := c.verifyTopics(ctx); err != nil {
		_ = conn.Close()
		return nil, err
	}

	if logg != nil {
		logg.Info(logg.WithField(ctx, "topics", topics), "pubsub topics verified")
	}
	return c, nil
}

// workflowTopics returns the configured topic IDs, trimmed and without repeats.
func workflowTopics(cfg config.PubSubConfig) []string {
	var out []string
	for _, raw := range []string{cfg.PhaseEventsTopic, cfg.DisbursementTopic} {
		name := strings.TrimSpace(raw)
		if name != "" && !slices.Contains(out, name) {
			out = append(out, name)
		}
	}
	return out
}

// verifyTopics reports every missing topic at once.
func (c *Client) verifyTopics(ctx context.Context) error {
	var errs []error
	for _, name := range c.topics {
		_, err := c.conn.TopicAdminClient.GetTopic(ctx, &pubsubpb.GetTopicRequest{Topic: qualify(c.project, "topics", name)})
		switch {
		case err == nil:
		case status.Code(err) == codes.NotFound:
			errs = append(errs, fmt.Errorf("topic %q does not exist", name))
		default:
			errs = append(errs, fmt.Errorf("checking topic %q: %w", name, err))
		}
	}
	return errors.Join(errs...)
}

// Publisher accepts a topic ID or a full resource name.
func (c *Client) Publisher(topic string) *pubsub.Publisher {
	if c == nil || c.conn == nil {
		return nil
	}
	if full := qualify(c.project, "topics", topic); full != "" {
		return c.conn.Publisher(full)
	}
	return nil
}

func (c *Client) Ping(ctx context.Context) error {
	if c == nil || c.conn == nil {
		return errors.New("pubsub client not initialized")
	}
	return c.verifyTopics(ctx)
}

func (c *Client) Close() error {
	if c == nil || c.conn == nil {
		return nil
	}
	return c.conn.Close()
}

// qualify expands an ID to projects/<project>/<kind>/<id>. Names that are
// already qualified pass through.
func qualify(project, kind, name string) string {
	name = strings.TrimSpace(name)
	if name == "" {
		return ""
	}
	if strings.HasPrefix(name, "projects/") && strings.Contains(name, "/"+kind+"/") {
		return name
	}
	if project = strings.TrimSpace(project); project == "" {
		return ""
	}
	return "projects/" + project + "/" + kind + "/" + name
}

package bundle

import (
	"context"
	"fmt"
	"sort"

	"github.com/go-redis/redis/v8"
	"github.com/sirupsen/logrus"

	"github.com/dive-federation/pdp/pkg/observability"
)

const (
	// versionsKey is the Redis hash of replicaID -> active bundle version.
	versionsKey = "pdp:bundle:versions"

	// notifyChannel carries publish notifications from the hub to spokes.
	notifyChannel = "pdp:bundle:notify"
)

// Reporter records replica bundle versions in Redis and surfaces hub/spoke
// drift. Distribution is eventually consistent; drift is expected briefly
// after a publish and alarming when it persists.
type Reporter struct {
	client  *redis.Client
	logger  *logrus.Logger
	metrics *observability.Metrics
}

// NewReporter creates a drift reporter. metrics may be nil.
func NewReporter(client *redis.Client, logger *logrus.Logger, metrics *observability.Metrics) *Reporter {
	if logger == nil {
		logger = logrus.New()
	}
	return &Reporter{client: client, logger: logger, metrics: metrics}
}

// ReportVersion records a replica's active bundle version.
func (r *Reporter) ReportVersion(ctx context.Context, replicaID, version string) error {
	if err := r.client.HSet(ctx, versionsKey, replicaID, version).Err(); err != nil {
		return fmt.Errorf("failed to report bundle version: %w", err)
	}
	return nil
}

// Publish notifies all spokes that a new bundle version is available.
func (r *Reporter) Publish(ctx context.Context, version string) error {
	if err := r.client.Publish(ctx, notifyChannel, version).Err(); err != nil {
		return fmt.Errorf("failed to publish bundle notification: %w", err)
	}
	return nil
}

// Notifications subscribes to publish notifications, feeding versions into the
// returned channel until ctx is cancelled.
func (r *Reporter) Notifications(ctx context.Context) <-chan string {
	out := make(chan string, 1)
	sub := r.client.Subscribe(ctx, notifyChannel)

	go func() {
		defer close(out)
		defer sub.Close()
		ch := sub.Channel()
		for {
			select {
			case <-ctx.Done():
				return
			case msg, ok := <-ch:
				if !ok {
					return
				}
				select {
				case out <- msg.Payload:
				default:
					// A pending notification already wakes the syncer.
				}
			}
		}
	}()
	return out
}

// ReplicaVersion is one replica's reported state.
type ReplicaVersion struct {
	ReplicaID string `json:"replicaId"`
	Version   string `json:"version"`
	Drifted   bool   `json:"drifted"`
}

// Snapshot returns every replica's reported version, flagged against the
// reference (normally the hub's latest published version).
func (r *Reporter) Snapshot(ctx context.Context, reference string) ([]ReplicaVersion, error) {
	reported, err := r.client.HGetAll(ctx, versionsKey).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to read replica versions: %w", err)
	}

	out := make([]ReplicaVersion, 0, len(reported))
	for id, version := range reported {
		out = append(out, ReplicaVersion{
			ReplicaID: id,
			Version:   version,
			Drifted:   reference != "" && version != reference,
		})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ReplicaID < out[j].ReplicaID })
	return out, nil
}

// ReportDrift logs and exports the number of drifted replicas. Wired to a cron
// schedule on the hub.
func (r *Reporter) ReportDrift(ctx context.Context, reference string) error {
	replicas, err := r.Snapshot(ctx, reference)
	if err != nil {
		return err
	}

	drifted := 0
	for _, replica := range replicas {
		if replica.Drifted {
			drifted++
			r.logger.WithFields(logrus.Fields{
				"replica":   replica.ReplicaID,
				"version":   replica.Version,
				"reference": reference,
			}).Warn("replica bundle version drift")
		}
	}

	if r.metrics != nil {
		r.metrics.BundleDriftedReplicas.Set(float64(drifted))
	}
	return nil
}

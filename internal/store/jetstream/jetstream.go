package jetstream

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"regexp"
	"sync"
	"time"

	"github.com/nats-io/nats.go"
	natscomponent "github.com/pwa-builder/PWABuilder-sub006/internal/component/nats"
	"github.com/pwa-builder/PWABuilder-sub006/internal/config"
	"github.com/pwa-builder/PWABuilder-sub006/internal/job_tracer"
	"github.com/pwa-builder/PWABuilder-sub006/internal/service/logger"
	"github.com/pwa-builder/PWABuilder-sub006/internal/store"
	"github.com/pwa-builder/PWABuilder-sub006/internal/util"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

const (
	popWait       = time.Second
	healthTimeout = 3 * time.Second
)

var tokenUnsafeRe = regexp.MustCompile(`[^A-Za-z0-9_-]`)

// JetStreamStore keeps job records in a key/value bucket and each list in a
// work queue stream, one subject and durable pull consumer per list key.
// Entries expire with the bucket TTL.
type JetStreamStore struct {
	connection *nats.Conn
	jContext   nats.JetStreamContext
	bucket     nats.KeyValue
	stream     string
	ttl        time.Duration

	mu    sync.Mutex
	subs  map[string]*nats.Subscription
	popMu sync.Mutex
}

var (
	jss       *JetStreamStore
	once      sync.Once
	initError error
)

func NewJetStreamStore() (store.Store, error) {
	once.Do(func() {
		cfg, err := config.GetNatsConfig()
		if err != nil {
			initError = err
			return
		}
		nc, err := natscomponent.NewNatsConnection()
		if err != nil {
			initError = err
			return
		}
		jss, initError = NewJetStreamStoreWithConn(nc, cfg.JOB_BUCKET, cfg.QUEUE_STREAM,
			time.Duration(cfg.JOB_TTL_DAYS)*24*time.Hour)
	})
	if initError != nil {
		return nil, initError
	}
	return jss, nil
}

// NewJetStreamStoreWithConn creates or binds the bucket and stream on nc.
func NewJetStreamStoreWithConn(nc *nats.Conn, bucket, stream string, ttl time.Duration) (*JetStreamStore, error) {
	js, err := nc.JetStream()
	if err != nil {
		return nil, err
	}
	kv, err := createOrGetBucket(js, bucket, ttl)
	if err != nil {
		return nil, err
	}
	_, err = js.AddStream(&nats.StreamConfig{
		Name:      stream,
		Subjects:  []string{stream + ".>"},
		Retention: nats.WorkQueuePolicy,
		Storage:   nats.FileStorage,
		MaxAge:    ttl,
	})
	if err != nil && !errors.Is(err, nats.ErrStreamNameAlreadyInUse) {
		return nil, fmt.Errorf("could not create queue stream: %w", err)
	}
	return &JetStreamStore{
		connection: nc,
		jContext:   js,
		bucket:     kv,
		stream:     stream,
		ttl:        ttl,
		subs:       make(map[string]*nats.Subscription),
	}, nil
}

func createOrGetBucket(js nats.JetStreamContext, bucket string, ttl time.Duration) (nats.KeyValue, error) {
	kv, err := js.KeyValue(bucket)
	if err == nil {
		return kv, nil
	}
	if !errors.Is(err, nats.ErrBucketNotFound) {
		return nil, fmt.Errorf("error retrieving nats bucket instance: %w", err)
	}
	kv, err = js.CreateKeyValue(&nats.KeyValueConfig{
		Bucket:      bucket,
		Description: "Packaging job records",
		TTL:         ttl,
		Storage:     nats.FileStorage,
	})
	if err != nil {
		return nil, fmt.Errorf("could not create nats bucket: %w", err)
	}
	return kv, nil
}

func (j *JetStreamStore) Enqueue(ctx context.Context, key string, value interface{}) (int64, error) {
	ctx, span := startSpan(ctx, "Nats/Enqueue", key)
	defer span.End()

	b, err := encode(key, value)
	if err != nil {
		util.RecordSpanError(span, err)
		return 0, err
	}
	if _, err := j.jContext.Publish(j.subject(key), b, nats.Context(ctx)); err != nil {
		err = fmt.Errorf("failed to publish to list %s: %w", key, err)
		util.RecordSpanError(span, err)
		return 0, err
	}
	return j.pending(ctx, key)
}

// value must be non-nil pointer to destination type
func (j *JetStreamStore) Dequeue(ctx context.Context, key string, out interface{}) (bool, error) {
	ctx, span := startSpan(ctx, "Nats/Dequeue", key)
	defer span.End()
	if key == "" {
		util.RecordSpanError(span, store.ErrEmptyKey)
		return false, store.ErrEmptyKey
	}

	sub, err := j.subscription(key)
	if err != nil {
		util.RecordSpanError(span, err)
		return false, err
	}

	j.popMu.Lock()
	defer j.popMu.Unlock()

	fetchCtx, cancel := context.WithTimeout(ctx, popWait)
	defer cancel()
	msgs, err := sub.Fetch(1, nats.Context(fetchCtx))
	if ctx.Err() != nil {
		return false, ctx.Err()
	}
	if errors.Is(err, nats.ErrTimeout) || errors.Is(err, context.DeadlineExceeded) || (err == nil && len(msgs) == 0) {
		return false, nil
	}
	if err != nil {
		err = fmt.Errorf("failed to pop from list %s: %w", key, err)
		util.RecordSpanError(span, err)
		return false, err
	}

	msg := msgs[0]
	// acked before decoding so the entry is handed out once
	if err := msg.AckSync(nats.Context(ctx)); err != nil {
		err = fmt.Errorf("failed to ack list entry from %s: %w", key, err)
		util.RecordSpanError(span, err)
		return false, err
	}
	if err := json.Unmarshal(msg.Data, out); err != nil {
		err = fmt.Errorf("failed to unmarshal list entry from %s: %w", key, err)
		util.RecordSpanError(span, err)
		return false, err
	}
	return true, nil
}

func (j *JetStreamStore) QueueLength(ctx context.Context, key string) (int64, error) {
	ctx, span := startSpan(ctx, "Nats/QueueLength", key)
	defer span.End()
	if key == "" {
		util.RecordSpanError(span, store.ErrEmptyKey)
		return 0, store.ErrEmptyKey
	}
	n, err := j.pending(ctx, key)
	if err != nil {
		util.RecordSpanError(span, err)
	}
	return n, err
}

// value must be non-nil pointer to destination type
func (j *JetStreamStore) GetJSON(ctx context.Context, key string, out interface{}) (bool, error) {
	_, span := startSpan(ctx, "Nats/Get", key)
	defer span.End()
	if key == "" {
		util.RecordSpanError(span, store.ErrEmptyKey)
		return false, store.ErrEmptyKey
	}

	entry, err := j.bucket.Get(bucketKey(key))
	if errors.Is(err, nats.ErrKeyNotFound) {
		return false, nil
	}
	if err != nil {
		err = fmt.Errorf("failed to retrieve value for key %s: %w", key, err)
		util.RecordSpanError(span, err)
		return false, err
	}
	if err := json.Unmarshal(entry.Value(), out); err != nil {
		err = fmt.Errorf("failed to unmarshal value for key %s: %w", key, err)
		util.RecordSpanError(span, err)
		return false, err
	}
	return true, nil
}

// Save writes value under key. The bucket TTL applies whatever ttl is given.
func (j *JetStreamStore) Save(ctx context.Context, key string, value interface{}, ttl time.Duration) error {
	_, span := startSpan(ctx, "Nats/Save", key)
	defer span.End()

	b, err := encode(key, value)
	if err != nil {
		util.RecordSpanError(span, err)
		return err
	}
	if _, err := j.bucket.Put(bucketKey(key), b); err != nil {
		err = fmt.Errorf("failed to save key %s: %w", key, err)
		util.RecordSpanError(span, err)
		return err
	}
	return nil
}

func (j *JetStreamStore) HealthCheck(ctx context.Context) error {
	if !j.connection.IsConnected() {
		return fmt.Errorf("nats connection is %s", j.connection.Status())
	}
	ctx, cancel := context.WithTimeout(ctx, healthTimeout)
	defer cancel()
	_, err := j.jContext.AccountInfo(nats.Context(ctx))
	return err
}

func (j *JetStreamStore) GetDefaultTTL() time.Duration {
	return j.ttl
}

func (j *JetStreamStore) ShutDown(ctx context.Context) {
	j.mu.Lock()
	for _, s := range j.subs {
		_ = s.Unsubscribe()
	}
	j.subs = map[string]*nats.Subscription{}
	j.mu.Unlock()

	if j.connection.IsClosed() {
		return
	}
	done := make(chan struct{})
	j.connection.SetClosedHandler(func(_ *nats.Conn) {
		close(done)
	})
	if err := j.connection.Drain(); err != nil {
		logger.Log.Err(err).Msg("unable to close nats connection")
		return
	}

	select {
	case <-done:
	case <-ctx.Done():
		j.connection.Close()
	}
}

func (j *JetStreamStore) subject(key string) string {
	return j.stream + "." + token(key)
}

func (j *JetStreamStore) subscription(key string) (*nats.Subscription, error) {
	j.mu.Lock()
	defer j.mu.Unlock()
	if s, ok := j.subs[key]; ok {
		return s, nil
	}
	s, err := j.jContext.PullSubscribe(j.subject(key), token(key),
		nats.BindStream(j.stream), nats.AckExplicit())
	if err != nil {
		return nil, fmt.Errorf("failed to subscribe to list %s: %w", key, err)
	}
	j.subs[key] = s
	return s, nil
}

// pending counts the entries still stored for key. Acked entries are removed
// by the work queue retention.
func (j *JetStreamStore) pending(ctx context.Context, key string) (int64, error) {
	subj := j.subject(key)
	info, err := j.jContext.StreamInfo(j.stream, &nats.StreamInfoRequest{SubjectsFilter: subj}, nats.Context(ctx))
	if err != nil {
		return 0, fmt.Errorf("failed to read length of list %s: %w", key, err)
	}
	return int64(info.State.Subjects[subj]), nil
}

// token maps a list key onto a subject token and durable name.
func token(key string) string {
	return tokenUnsafeRe.ReplaceAllString(key, "_")
}

// bucketKey encodes key into the key/value alphabet. Job ids contain ':'.
func bucketKey(key string) string {
	return base64.RawURLEncoding.EncodeToString([]byte(key))
}

func encode(key string, value interface{}) ([]byte, error) {
	if key == "" {
		return nil, store.ErrEmptyKey
	}
	if value == nil {
		return nil, store.ErrNilValue
	}
	b, err := json.Marshal(value)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal value for key %s: %w", key, err)
	}
	return b, nil
}

func startSpan(ctx context.Context, name, key string) (context.Context, trace.Span) {
	tracer := job_tracer.GetTracer()
	ctx, span := tracer.Start(ctx, name)
	span.AddEvent("nats.context",
		trace.WithAttributes(attribute.String("key", key)),
	)
	return ctx, span
}

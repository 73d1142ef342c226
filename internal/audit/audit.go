package audit

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/bwmarrin/discordgo"
	"go.uber.org/zap"
)

const (
	embedTitle  = "Изменение настроек"
	fieldAction = "Действие"
	fieldUser   = "Пользователь"
)

// Entry is one settings change to announce in a guild's logging channel.
type Entry struct {
	GuildID   string
	ChannelID string
	UserID    string
	Action    string
	CreatedAt time.Time
}

type Poster interface {
	PostAuditMessage(ctx context.Context, channelID string, embed *discordgo.MessageEmbed) error
}

// Notifier delivers entries from a bounded queue on a single worker.
// Notify never blocks and delivery failures are only logged, so an outage
// of the logging channel cannot hold up a settings write.
type Notifier struct {
	poster   Poster
	logger   *zap.Logger
	color    int
	fallback string

	mu     sync.RWMutex
	closed bool
	queue  chan Entry
	done   chan struct{}
	ctx    context.Context
	cancel context.CancelFunc

	delivered atomic.Int64
	dropped   atomic.Int64
	failed    atomic.Int64
}

type Options struct {
	QueueSize       int
	EmbedColor      int
	FallbackChannel string
}

func NewNotifier(poster Poster, logger *zap.Logger, opts Options) *Notifier {
	size := opts.QueueSize
	if size <= 0 {
		size = 64
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &Notifier{
		poster:   poster,
		logger:   logger,
		color:    opts.EmbedColor,
		fallback: opts.FallbackChannel,
		queue:    make(chan Entry, size),
		done:     make(chan struct{}),
		ctx:      ctx,
		cancel:   cancel,
	}
}

func (n *Notifier) Start() {
	go n.run()
}

// Notify enqueues entry and reports whether it was accepted.
func (n *Notifier) Notify(entry Entry) bool {
	if entry.ChannelID == "" {
		entry.ChannelID = n.fallback
	}
	if entry.ChannelID == "" {
		n.logger.Debug("audit skipped, no logging channel", zap.String("guild_id", entry.GuildID))
		return false
	}
	if entry.CreatedAt.IsZero() {
		entry.CreatedAt = time.Now()
	}

	n.mu.RLock()
	defer n.mu.RUnlock()
	if n.closed {
		n.dropped.Add(1)
		return false
	}
	select {
	case n.queue <- entry:
		return true
	default:
		n.dropped.Add(1)
		n.logger.Warn("audit queue full, entry dropped", zap.String("guild_id", entry.GuildID), zap.String("channel_id", entry.ChannelID))
		return false
	}
}

// Close stops accepting entries and waits for the queue to drain until ctx
// is done; whatever is still queued then is abandoned.
func (n *Notifier) Close(ctx context.Context) {
	n.mu.Lock()
	if !n.closed {
		n.closed = true
		close(n.queue)
	}
	n.mu.Unlock()

	select {
	case <-n.done:
	case <-ctx.Done():
		n.cancel()
		<-n.done
	}
}

func (n *Notifier) Delivered() int64 { return n.delivered.Load() }
func (n *Notifier) Dropped() int64   { return n.dropped.Load() }
func (n *Notifier) Failed() int64    { return n.failed.Load() }

func (n *Notifier) run() {
	defer close(n.done)
	for entry := range n.queue {
		if n.ctx.Err() != nil {
			n.dropped.Add(1)
			continue
		}
		n.deliver(entry)
	}
}

func (n *Notifier) deliver(entry Entry) {
	defer func() {
		if r := recover(); r != nil {
			n.failed.Add(1)
			n.logger.Error("audit delivery panicked", zap.Any("panic", r), zap.String("guild_id", entry.GuildID))
		}
	}()

	if err := n.poster.PostAuditMessage(n.ctx, entry.ChannelID, BuildEmbed(entry, n.color)); err != nil {
		n.failed.Add(1)
		n.logger.Error("audit delivery failed",
			zap.Error(err),
			zap.String("guild_id", entry.GuildID),
			zap.String("channel_id", entry.ChannelID),
			zap.String("user_id", entry.UserID),
		)
		return
	}
	n.delivered.Add(1)
	n.logger.Info("audit", zap.String("guild_id", entry.GuildID), zap.String("user_id", entry.UserID), zap.String("details", entry.Action))
}

func BuildEmbed(entry Entry, color int) *discordgo.MessageEmbed {
	return &discordgo.MessageEmbed{
		Title:     embedTitle,
		Color:     color,
		Timestamp: entry.CreatedAt.Format(time.RFC3339),
		Fields: []*discordgo.MessageEmbedField{
			{Name: fieldAction, Value: entry.Action, Inline: false},
			{Name: fieldUser, Value: "<@" + entry.UserID + ">", Inline: false},
		},
	}
}

package main

import (
	"context"
	"fmt"
	"math/rand"
	"os"
	"os/signal"
	"strings"
	"sync"
	"sync/atomic"
	"syscall"
	"time"

	"github.com/butembo/butembochat/pkg/client"
	"github.com/butembo/butembochat/pkg/logging"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
)

const loremIpsum = "Lorem ipsum dolor sit amet, consectetur adipiscing elit, sed do eiusmod tempor incididunt ut labore et dolore magna aliqua. Ut enim ad minim veniam, quis nostrud exercitation ullamco laboris nisi ut aliquip ex ea commodo consequat. Duis aute irure dolor in reprehenderit in voluptate velit esse cillum dolore eu fugiat nulla pariatur. Excepteur sint occaecat cupidatat non proident, sunt in culpa qui officia deserunt mollit anim id est laborum."

var loremWords = strings.Fields(strings.ToLower(strings.NewReplacer(",", "", ".", "").Replace(loremIpsum)))

// generateUsername combines fragments of two random words and a number
func generateUsername(id int) string {
	word1 := loremWords[rand.Intn(len(loremWords))]
	word2 := loremWords[rand.Intn(len(loremWords))]

	frag := func(w string) string {
		if len(w) > 4 {
			return w[:3+rand.Intn(2)]
		}
		return w
	}

	username := fmt.Sprintf("%s%s%d", frag(word1), frag(word2), id)
	if len(username) > 20 {
		username = username[:20]
	}
	return username
}

// Stats tracks performance metrics
type Stats struct {
	messagesPosted    atomic.Int64
	messagesDropped   atomic.Int64
	messagesEchoed    atomic.Int64
	messagesReceived  atomic.Int64
	totalResponseTime atomic.Int64 // in microseconds
	connectionErrors  atomic.Int64
	disconnections    atomic.Int64
}

func (s *Stats) recordEcho(responseTimeUs int64) {
	s.messagesEchoed.Add(1)
	s.totalResponseTime.Add(responseTimeUs)
}

func (s *Stats) snapshot() (posted, dropped, received, connErrors int64, avgResponseUs float64) {
	posted = s.messagesPosted.Load()
	dropped = s.messagesDropped.Load()
	received = s.messagesReceived.Load()
	connErrors = s.connectionErrors.Load()

	if echoed := s.messagesEchoed.Load(); echoed > 0 {
		avgResponseUs = float64(s.totalResponseTime.Load()) / float64(echoed)
	}

	return
}

// BotClient is a fake user that joins a channel and posts at random intervals
type BotClient struct {
	client.BaseObserver

	id       int
	nickname string
	channel  string
	c        *client.Client
	stats    *Stats

	welcomed  chan struct{}
	welcomeMu sync.Once

	pendingMu sync.Mutex
	pending   map[string]time.Time // message tag -> send time
	seq       int
	closing   atomic.Bool
}

func NewBotClient(id int, channel string, stats *Stats, logger zerolog.Logger) *BotClient {
	bc := &BotClient{
		id:       id,
		nickname: generateUsername(id),
		channel:  channel,
		stats:    stats,
		welcomed: make(chan struct{}),
		pending:  make(map[string]time.Time),
	}
	bc.c = client.New(client.WithLogger(logger.With().Int("bot", id).Logger()))
	bc.c.RegisterObserver(bc)
	return bc
}

func (bc *BotClient) OnWelcome(myID, myName string) {
	bc.welcomeMu.Do(func() { close(bc.welcomed) })
}

func (bc *BotClient) OnMessage(channel, message, userName, userID string) {
	bc.stats.messagesReceived.Add(1)

	me, ok := bc.c.LocalUser()
	if !ok || userID != me.ID {
		return
	}

	tag, _, _ := strings.Cut(message, " ")
	bc.pendingMu.Lock()
	sent, found := bc.pending[tag]
	delete(bc.pending, tag)
	bc.pendingMu.Unlock()

	if found {
		bc.stats.recordEcho(time.Since(sent).Microseconds())
	}
}

func (bc *BotClient) OnDisconnected(err error) {
	if err != nil && !bc.closing.Load() {
		bc.stats.disconnections.Add(1)
	}
}

func (bc *BotClient) Connect(ctx context.Context, address string) error {
	if err := bc.c.Connect(ctx, address); err != nil {
		bc.stats.connectionErrors.Add(1)
		return err
	}

	// Wait for the server to assign an identity
	select {
	case <-bc.welcomed:
	case <-time.After(5 * time.Second):
		bc.stats.connectionErrors.Add(1)
		return fmt.Errorf("timeout waiting for welcome")
	}

	bc.c.ChangeUserName(bc.nickname)
	if !bc.c.JoinChannel(bc.channel) {
		return fmt.Errorf("failed to join %s", bc.channel)
	}
	return nil
}

func (bc *BotClient) PostRandomMessage() {
	// Generate random message content (5-20 words)
	wordCount := 5 + rand.Intn(16)
	words := make([]string, 0, wordCount+1)

	bc.pendingMu.Lock()
	bc.seq++
	tag := fmt.Sprintf("#%d-%d", bc.id, bc.seq)
	bc.pending[tag] = time.Now()
	bc.pendingMu.Unlock()

	words = append(words, tag)
	for i := 0; i < wordCount; i++ {
		words = append(words, loremWords[rand.Intn(len(loremWords))])
	}

	if bc.c.SendMessage(bc.channel, strings.Join(words, " ")) {
		bc.stats.messagesPosted.Add(1)
		return
	}

	bc.stats.messagesDropped.Add(1)
	bc.pendingMu.Lock()
	delete(bc.pending, tag)
	bc.pendingMu.Unlock()
}

func (bc *BotClient) Run(ctx context.Context, duration, minDelay, maxDelay, shutdownDelay time.Duration) {
	defer bc.c.Close()

	endTime := time.Now().Add(duration)
	for time.Now().Before(endTime) {
		bc.PostRandomMessage()

		// Random delay between posts
		delay := minDelay
		if maxDelay > minDelay {
			delay += time.Duration(rand.Int63n(int64(maxDelay - minDelay)))
		}
		select {
		case <-ctx.Done():
			return
		case <-time.After(delay):
		}
	}

	// Stagger shutdown to avoid thundering herd on disconnect
	if shutdownDelay > 0 {
		select {
		case <-ctx.Done():
		case <-time.After(shutdownDelay):
		}
	}

	bc.closing.Store(true)
	bc.c.Disconnect()
}

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	var (
		serverAddr string
		channel    string
		numClients int
		duration   time.Duration
		minDelay   time.Duration
		maxDelay   time.Duration
		logLevel   string
	)

	cmd := &cobra.Command{
		Use:   "butembo-loadtest",
		Short: "Drive a ButemboChat server with many concurrent bot clients",
		RunE: func(cmd *cobra.Command, args []string) error {
			if numClients < 1 {
				return fmt.Errorf("--clients must be at least 1")
			}
			if maxDelay < minDelay {
				return fmt.Errorf("--max-delay must not be less than --min-delay")
			}

			logger := logging.New(logLevel, os.Stderr)
			botLogger := logger.Level(zerolog.WarnLevel)

			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			// Ramp up over 25% of test duration
			rampUpDuration := duration / 4
			staggerDelay := rampUpDuration / time.Duration(numClients)
			if staggerDelay < time.Millisecond {
				staggerDelay = time.Millisecond
			}

			logger.Info().
				Str("server", serverAddr).
				Str("channel", channel).
				Int("clients", numClients).
				Dur("duration", duration).
				Dur("ramp_up", rampUpDuration).
				Dur("min_delay", minDelay).
				Dur("max_delay", maxDelay).
				Msg("starting load test")

			stats := &Stats{}
			var wg sync.WaitGroup

			// Start stats reporter
			stopStats := make(chan struct{})
			go func() {
				ticker := time.NewTicker(5 * time.Second)
				defer ticker.Stop()

				startTime := time.Now()
				for {
					select {
					case <-ticker.C:
						posted, dropped, received, connErrors, avgUs := stats.snapshot()
						elapsed := time.Since(startTime).Seconds()
						logger.Info().
							Int64("posted", posted).
							Str("rate", fmt.Sprintf("%.1f/s", float64(posted)/elapsed)).
							Int64("dropped", dropped).
							Int64("received", received).
							Int64("conn_errors", connErrors).
							Str("avg_echo", fmt.Sprintf("%.2fms", avgUs/1000.0)).
							Msg("stats")
					case <-stopStats:
						return
					}
				}
			}()

		spawn:
			for i := 0; i < numClients; i++ {
				wg.Add(1)

				// Reverse order for ramp-down
				shutdownDelay := staggerDelay * time.Duration(numClients-i-1)

				go func(id int, shutdownDelay time.Duration) {
					defer wg.Done()

					bot := NewBotClient(id, channel, stats, botLogger)
					connectCtx, cancel := context.WithTimeout(ctx, client.DefaultConnectTimeout)
					err := bot.Connect(connectCtx, serverAddr)
					cancel()
					if err != nil {
						bot.c.Close()
						logger.Debug().Err(err).Int("bot", id).Msg("bot failed to start")
						return
					}

					// Only log every 100th client during ramp-up
					if id%100 == 0 {
						logger.Info().Int("bot", id).Msg("connected")
					}

					bot.Run(ctx, duration, minDelay, maxDelay, shutdownDelay)
				}(i, shutdownDelay)

				select {
				case <-ctx.Done():
					break spawn
				case <-time.After(staggerDelay):
				}
			}

			// Wait for all clients to finish
			wg.Wait()
			close(stopStats)

			// Final stats
			posted, dropped, received, connErrors, avgUs := stats.snapshot()
			rate := float64(posted) / duration.Seconds()

			// Every post fans out to every bot in the channel
			expectedDeliveries := posted * int64(numClients)
			deliveryRate := 0.0
			if expectedDeliveries > 0 {
				deliveryRate = float64(received) / float64(expectedDeliveries) * 100
			}

			fmt.Println()
			fmt.Println("=== Final Results ===")
			fmt.Printf("Duration: %v\n", duration)
			fmt.Printf("Messages posted: %d (%.1f/s)\n", posted, rate)
			fmt.Printf("Messages dropped while disconnected: %d\n", dropped)
			fmt.Printf("Messages received: %d (%.1f%% of expected fan-out)\n", received, deliveryRate)
			fmt.Printf("Echoes observed: %d\n", stats.messagesEchoed.Load())
			fmt.Printf("Unexpected disconnections: %d\n", stats.disconnections.Load())
			fmt.Printf("Connection errors: %d\n", connErrors)
			fmt.Printf("Average echo latency: %.2fms\n", avgUs/1000.0)
			return nil
		},
	}

	cmd.Flags().StringVar(&serverAddr, "server", "localhost:10000", "Server address (host:port or ws:// URL)")
	cmd.Flags().StringVar(&channel, "channel", "general", "Channel every bot joins")
	cmd.Flags().IntVar(&numClients, "clients", 10, "Number of concurrent clients")
	cmd.Flags().DurationVar(&duration, "duration", time.Minute, "Test duration")
	cmd.Flags().DurationVar(&minDelay, "min-delay", 100*time.Millisecond, "Minimum delay between posts")
	cmd.Flags().DurationVar(&maxDelay, "max-delay", time.Second, "Maximum delay between posts")
	cmd.Flags().StringVar(&logLevel, "log-level", "info", "Log level")

	return cmd
}

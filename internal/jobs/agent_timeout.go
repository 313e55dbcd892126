package jobs

import (
	"context"
	"log"
	"math/rand"
	"sync"
	"time"

	"github.com/nachoDevOS/whatsapp-server/internal/models"
	"github.com/nachoDevOS/whatsapp-server/internal/services"
	"github.com/nachoDevOS/whatsapp-server/internal/storage"
)

// AgentTimeoutJob sweeps conversations stuck waiting for a human agent and
// hands them back to the menu with a fallback notice.
type AgentTimeoutJob struct {
	store   storage.Store
	sender  services.Sender
	tracker *services.SentTracker

	interval time.Duration
	// Pause window between consecutive users in one sweep, so a batch of
	// timeouts does not produce a burst signature on the outbound channel.
	pauseMin    time.Duration
	pauseJitter time.Duration

	mu      sync.Mutex
	done    chan struct{}
	running bool
}

// NewAgentTimeoutJob creates the sweep job with the production cadence:
// every minute, 0.5-1.5s between users.
func NewAgentTimeoutJob(store storage.Store, sender services.Sender, tracker *services.SentTracker) *AgentTimeoutJob {
	return &AgentTimeoutJob{
		store:       store,
		sender:      sender,
		tracker:     tracker,
		interval:    time.Minute,
		pauseMin:    500 * time.Millisecond,
		pauseJitter: time.Second,
	}
}

// Start launches the periodic sweep.
func (j *AgentTimeoutJob) Start() {
	j.mu.Lock()
	defer j.mu.Unlock()
	if j.running {
		log.Println("Agent timeout job already running")
		return
	}
	j.running = true
	j.done = make(chan struct{})
	log.Println("Starting agent timeout job...")

	go j.loop(j.done)
}

// Stop cancels the timer so no new sweep starts during shutdown. A sweep
// already in flight finishes on its own.
func (j *AgentTimeoutJob) Stop() {
	j.mu.Lock()
	defer j.mu.Unlock()
	if !j.running {
		return
	}
	j.running = false
	close(j.done)
	log.Println("Stopping agent timeout job...")
}

func (j *AgentTimeoutJob) loop(done chan struct{}) {
	ticker := time.NewTicker(j.interval)
	defer ticker.Stop()

	for {
		select {
		case <-done:
			return
		case <-ticker.C:
			log.Println("Verificando los tiempos de espera de los agentes...")
			j.RunSweep(context.Background())
		}
	}
}

// RunSweep performs one pass: reset every stale awaiting_agent user and send
// each a randomized fallback notice. A failure for one user never stops the
// rest, and a panic never kills the ticker loop.
func (j *AgentTimeoutJob) RunSweep(ctx context.Context) {
	defer func() {
		if rec := recover(); rec != nil {
			log.Printf("Agent timeout sweep panicked: %v", rec)
		}
	}()

	users, err := j.store.CheckAgentTimeouts()
	if err != nil {
		log.Printf("Error al verificar los tiempos de espera de los agentes: %v", err)
		return
	}

	for _, user := range users {
		j.pause(ctx)
		j.notify(ctx, user)
	}
}

func (j *AgentTimeoutJob) notify(ctx context.Context, user *models.User) {
	text := services.RandomizeText(services.AgentTimeoutText)

	sentID, err := j.sender.SendText(ctx, user.SessionID, user.ContactID, text)
	if err != nil {
		log.Printf("Error enviando aviso de timeout a %s: %v", user.PhoneNumber, err)
		return
	}

	j.tracker.Register(sentID)
	if err := j.store.SaveMessage(user.ID, text, models.SourceBot); err != nil {
		log.Printf("Error guardando aviso de timeout para %s: %v", user.PhoneNumber, err)
		return
	}

	log.Printf("Usuario %s ha vuelto al menú principal por inactividad del agente.", user.PhoneNumber)
}

func (j *AgentTimeoutJob) pause(ctx context.Context) {
	wait := j.pauseMin
	if j.pauseJitter > 0 {
		wait += time.Duration(rand.Int63n(int64(j.pauseJitter)))
	}
	if wait <= 0 {
		return
	}
	select {
	case <-time.After(wait):
	case <-ctx.Done():
	}
}

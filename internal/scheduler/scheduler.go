package scheduler

import (
	"context"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/robfig/cron/v3"

	"portfolio-chatter/internal/digest"
	"portfolio-chatter/internal/storage"
)

// everyMinute fires once a minute; the target time is matched inside the tick.
const everyMinute = "* * * * *"

// StateReader reads the persisted digest watermark.
type StateReader interface {
	ReadState() storage.State
}

// DigestSender performs one digest delivery.
type DigestSender interface {
	Send(ctx context.Context, reason digest.Reason, sessionKeyHint string) (digest.Result, error)
}

// Scheduler отправляет ежедневный дайджест журнала запросов не чаще раза в сутки
type Scheduler struct {
	cron   *cron.Cron
	ctx    context.Context
	cancel context.CancelFunc

	state  StateReader
	sender DigestSender
	hour   int
	minute int
	now    func() time.Time

	sending sync.Mutex
}

// New создает планировщик на локальное время hour:minute
func New(state StateReader, sender DigestSender, hour, minute int) *Scheduler {
	ctx, cancel := context.WithCancel(context.Background())

	return &Scheduler{
		cron:   cron.New(cron.WithLocation(time.Local)),
		ctx:    ctx,
		cancel: cancel,
		state:  state,
		sender: sender,
		hour:   hour,
		minute: minute,
		now:    time.Now,
	}
}

// Start запускает ежеминутную проверку
func (s *Scheduler) Start() error {
	if s.sender == nil || s.state == nil {
		log.Println("⚠️ Digest sender not set, scheduler will not send digests")
		return nil
	}

	if _, err := s.cron.AddFunc(everyMinute, func() { s.Tick(s.ctx) }); err != nil {
		return err
	}

	s.cron.Start()
	log.Printf("📬 Query log digest enabled: daily at %02d:%02d", s.hour, s.minute)
	return nil
}

// Tick checks the clock once and sends the daily digest when due.
// It reports whether a send was attempted.
func (s *Scheduler) Tick(ctx context.Context) bool {
	now := s.now()
	if now.Hour() != s.hour || now.Minute() != s.minute {
		return false
	}
	// a slow send from the previous tick still owns today's digest
	if !s.sending.TryLock() {
		return false
	}
	defer s.sending.Unlock()

	today := digest.LocalYmd(now)
	if s.state.ReadState().LastDailySentYmd == today {
		return false
	}

	log.Printf("🕘 Triggered daily query log digest for %s", today)
	if _, err := s.sender.Send(ctx, digest.ReasonDaily, ""); err != nil {
		log.Printf("⚠️ Failed emailing query log (daily): %v", err)
	}
	return true
}

// Stop останавливает планировщик и ждет завершения текущей отправки
func (s *Scheduler) Stop() {
	if s.cron != nil {
		ctx := s.cron.Stop()
		<-ctx.Done()
	}
	if s.cancel != nil {
		s.cancel()
	}
	log.Println("📅 Scheduler stopped")
}

// IsRunning проверяет, запущен ли планировщик
func (s *Scheduler) IsRunning() bool {
	return s.cron != nil && len(s.cron.Entries()) > 0
}

func (s *Scheduler) String() string {
	return fmt.Sprintf("daily digest at %02d:%02d local", s.hour, s.minute)
}

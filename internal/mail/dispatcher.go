package mail

import (
	"context"
	"errors"
	"strings"
	"sync"
	"time"

	"github.com/sirupsen/logrus"
)

// ErrDispatcherStopped is returned by Send when the dispatcher is not running.
var ErrDispatcherStopped = errors.New("mail dispatcher not running")

// Dispatcher delivers messages in the background without blocking the caller.
type Dispatcher interface {
	Start(ctx context.Context) error
	Shutdown()
	// Send queues msg for delivery. Delivery failures are logged, never retried.
	Send(msg Message) error
}

type DispatcherConfig struct {
	MaxConcurrent int
	SendTimeout   time.Duration
	// From is used when a message carries no sender.
	From   string
	Logger *logrus.Logger
}

type dispatcher struct {
	cfg    DispatcherConfig
	sender Sender

	sem    chan struct{}
	wg     sync.WaitGroup
	mu     sync.RWMutex
	ctx    context.Context
	cancel context.CancelFunc
}

func NewDispatcher(cfg DispatcherConfig, sender Sender) Dispatcher {
	if cfg.MaxConcurrent <= 0 {
		cfg.MaxConcurrent = 2
	}
	if cfg.SendTimeout == 0 {
		cfg.SendTimeout = 30 * time.Second
	}
	if cfg.Logger == nil {
		cfg.Logger = logrus.New()
	}
	return &dispatcher{
		cfg:    cfg,
		sender: sender,
		sem:    make(chan struct{}, cfg.MaxConcurrent),
	}
}

func (d *dispatcher) Start(ctx context.Context) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.ctx != nil {
		return errors.New("mail dispatcher already started")
	}
	// detached so a cancelled parent does not drop mail queued before Shutdown
	d.ctx, d.cancel = context.WithCancel(context.WithoutCancel(ctx))
	d.cfg.Logger.Infof("mail dispatcher started, max concurrent sends: %d", d.cfg.MaxConcurrent)
	return nil
}

// Shutdown stops accepting messages and waits for queued deliveries to finish.
func (d *dispatcher) Shutdown() {
	d.mu.Lock()
	ctx := d.ctx
	d.ctx = nil
	d.mu.Unlock()

	if ctx == nil {
		return
	}
	d.wg.Wait()
	d.cancel()
	d.cfg.Logger.Info("mail dispatcher stopped")
}

func (d *dispatcher) Send(msg Message) error {
	d.mu.RLock()
	ctx := d.ctx
	if ctx != nil {
		d.wg.Add(1)
	}
	d.mu.RUnlock()

	if ctx == nil {
		return ErrDispatcherStopped
	}
	if msg.From == "" {
		msg.From = d.cfg.From
	}

	go func() {
		defer d.wg.Done()
		select {
		case <-ctx.Done():
			return
		case d.sem <- struct{}{}:
			defer func() { <-d.sem }()
			d.deliver(ctx, msg)
		}
	}()
	return nil
}

func (d *dispatcher) deliver(ctx context.Context, msg Message) {
	sendCtx, cancel := context.WithTimeout(ctx, d.cfg.SendTimeout)
	defer cancel()

	logger := d.cfg.Logger.WithFields(logrus.Fields{
		"to":      strings.Join(msg.To, ","),
		"subject": msg.Subject,
	})
	if err := d.sender.Send(sendCtx, msg); err != nil {
		// warn, not error: error entries are themselves mailed to admins
		logger.Warnf("send mail failed: %v", err)
		return
	}
	logger.Debug("mail sent")
}

package reminder

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"sync"
	"time"

	rcron "github.com/robfig/cron/v3"
)

// Service runs reminders and persists them as JSON at storePath. Cron-kind
// schedules register with the cron runner; every/at kinds are driven by a
// one-second tick loop.
type Service struct {
	storePath  string
	mu         sync.Mutex
	reminders  []Reminder
	OnReminder func(r Reminder) error
	cron       *rcron.Cron
	entryMap   map[string]rcron.EntryID // reminder ID -> cron entry ID
	cancel     context.CancelFunc
	stopCh     chan struct{}
}

func NewService(storePath string) *Service {
	return &Service{
		storePath: storePath,
		entryMap:  make(map[string]rcron.EntryID),
	}
}

func (s *Service) Start(ctx context.Context) error {
	runCtx, cancel := context.WithCancel(ctx)
	stopCh := make(chan struct{})
	s.mu.Lock()
	s.cancel = cancel
	s.stopCh = stopCh
	s.mu.Unlock()

	if err := s.load(); err != nil {
		log.Printf("[reminder] warning: failed to load reminders: %v", err)
	}

	s.cron = rcron.New(rcron.WithSeconds())

	s.mu.Lock()
	for i := range s.reminders {
		if s.reminders[i].Enabled && s.reminders[i].Schedule.Kind == "cron" {
			s.register(&s.reminders[i])
		}
	}
	s.mu.Unlock()

	s.cron.Start()
	log.Printf("[reminder] started with %d reminders", len(s.reminders))

	go s.tickLoop(runCtx)

	go func() {
		select {
		case <-ctx.Done():
			s.Stop()
		case <-stopCh:
			return
		}
	}()

	return nil
}

func (s *Service) register(r *Reminder) {
	copied := *r
	id, err := s.cron.AddFunc(r.Schedule.Expr, func() {
		s.fire(copied)
	})
	if err != nil {
		log.Printf("[reminder] failed to register %s (%s): %v", r.Name, r.Schedule.Expr, err)
		return
	}
	s.entryMap[r.ID] = id
}

func (s *Service) fire(r Reminder) {
	log.Printf("[reminder] firing %s (%s)", r.Name, r.ID)

	var err error
	if s.OnReminder != nil {
		err = s.OnReminder(r)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	for i := range s.reminders {
		if s.reminders[i].ID != r.ID {
			continue
		}
		id := s.reminders[i].ID
		s.reminders[i].State.LastRunAtMs = time.Now().UnixMilli()
		if err != nil {
			s.reminders[i].State.LastStatus = "error"
			s.reminders[i].State.LastError = err.Error()
			log.Printf("[reminder] %s error: %v", r.Name, err)
		} else {
			s.reminders[i].State.LastStatus = "ok"
			s.reminders[i].State.LastError = ""
		}

		if s.reminders[i].OneShot {
			if entryID, ok := s.entryMap[id]; ok && s.cron != nil {
				s.cron.Remove(entryID)
				delete(s.entryMap, id)
			}
			s.reminders[i].Enabled = false
		}
		break
	}

	_ = s.save()
}

func (s *Service) tickLoop(ctx context.Context) {
	ticker := time.NewTicker(time.Second)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			now := time.Now().UnixMilli()
			s.mu.Lock()
			due := make([]Reminder, 0)
			for i := range s.reminders {
				r := &s.reminders[i]
				if !r.Enabled {
					continue
				}
				switch r.Schedule.Kind {
				case "every":
					if r.Schedule.EveryMs > 0 && now >= r.State.LastRunAtMs+r.Schedule.EveryMs {
						due = append(due, *r)
					}
				case "at":
					if r.Schedule.AtMs > 0 && now >= r.Schedule.AtMs {
						r.Enabled = false
						due = append(due, *r)
					}
				}
			}
			s.mu.Unlock()
			for _, r := range due {
				s.fire(r)
			}
		case <-ctx.Done():
			return
		}
	}
}

func (s *Service) Stop() {
	s.mu.Lock()
	cancel := s.cancel
	stopCh := s.stopCh
	s.cancel = nil
	s.stopCh = nil
	s.mu.Unlock()
	if cancel != nil {
		cancel()
	}
	if stopCh != nil {
		close(stopCh)
	}

	if s.cron != nil {
		stopCtx := s.cron.Stop()
		select {
		case <-stopCtx.Done():
		case <-time.After(5 * time.Second):
			log.Printf("[reminder] stop timeout waiting for running reminders")
		}
	}
	log.Printf("[reminder] stopped")
}

// Add registers and persists a new reminder.
func (s *Service) Add(r Reminder) (*Reminder, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.reminders = append(s.reminders, r)

	if r.Schedule.Kind == "cron" && s.cron != nil {
		s.register(&s.reminders[len(s.reminders)-1])
	}

	if err := s.save(); err != nil {
		return nil, fmt.Errorf("save reminders: %w", err)
	}

	saved := s.reminders[len(s.reminders)-1]
	return &saved, nil
}

func (s *Service) Remove(id string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	for i, r := range s.reminders {
		if r.ID == id {
			if entryID, ok := s.entryMap[id]; ok {
				if s.cron != nil {
					s.cron.Remove(entryID)
				}
				delete(s.entryMap, id)
			}
			s.reminders = append(s.reminders[:i], s.reminders[i+1:]...)
			_ = s.save()
			return true
		}
	}
	return false
}

func (s *Service) List() []Reminder {
	s.mu.Lock()
	defer s.mu.Unlock()
	result := make([]Reminder, len(s.reminders))
	copy(result, s.reminders)
	return result
}

func (s *Service) Get(id string) (*Reminder, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, r := range s.reminders {
		if r.ID == id {
			copied := r
			return &copied, true
		}
	}
	return nil, false
}

func (s *Service) Enable(id string, enabled bool) (*Reminder, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for i := range s.reminders {
		if s.reminders[i].ID != id {
			continue
		}
		s.reminders[i].Enabled = enabled
		if s.reminders[i].Schedule.Kind == "cron" && s.cron != nil {
			if enabled {
				if _, ok := s.entryMap[id]; !ok {
					s.register(&s.reminders[i])
				}
			} else {
				if entryID, ok := s.entryMap[id]; ok {
					s.cron.Remove(entryID)
					delete(s.entryMap, id)
				}
			}
		}
		_ = s.save()
		r := s.reminders[i]
		return &r, nil
	}
	return nil, fmt.Errorf("reminder %s not found", id)
}

// Load reads persisted reminders without starting the scheduler. Callers
// that run Start do not need it.
func (s *Service) Load() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.load()
}

func (s *Service) load() error {
	data, err := os.ReadFile(s.storePath)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return err
	}
	return json.Unmarshal(data, &s.reminders)
}

func (s *Service) save() error {
	dir := filepath.Dir(s.storePath)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return err
	}
	data, err := json.MarshalIndent(s.reminders, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(s.storePath, data, 0644)
}

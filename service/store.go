package service

import (
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/RizleneBERRAG/PIXELCRM-IA/config"
	"github.com/RizleneBERRAG/PIXELCRM-IA/model"
)

// AuditStore is an in-memory store for audit records
// In production, this should be replaced with a database
type AuditStore struct {
	audits    map[string]*model.Audit
	mu        sync.RWMutex
	maxAudits int // Maximum audits to keep, 0 = unlimited
}

var (
	globalStore *AuditStore
	storeOnce   sync.Once
)

// InitAuditStore initializes the global audit store with configuration
func InitAuditStore(cfg *config.StoreConfig) {
	storeOnce.Do(func() {
		maxAudits := cfg.MaxAudits
		if maxAudits < 0 {
			maxAudits = 0
		}
		globalStore = &AuditStore{
			audits:    make(map[string]*model.Audit),
			maxAudits: maxAudits,
		}
		slog.Info("audit store initialized", "max_audits", maxAudits)
	})
}

// GetAuditStore returns the global audit store, initializing it with
// default settings when InitAuditStore was never called.
func GetAuditStore() *AuditStore {
	storeOnce.Do(func() {
		globalStore = &AuditStore{
			audits:    make(map[string]*model.Audit),
			maxAudits: 100, // Default: keep 100 audits
		}
	})
	return globalStore
}

func (s *AuditStore) Save(audit *model.Audit) {
	s.mu.Lock()
	defer s.mu.Unlock()

	audit.UpdatedAt = time.Now()
	s.audits[audit.ID] = audit

	s.cleanupIfNeeded()
}

func (s *AuditStore) Get(id string) *model.Audit {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.audits[id]
}

func (s *AuditStore) GetByTenant(tenant string) []*model.Audit {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var result []*model.Audit
	for _, a := range s.audits {
		if a.Tenant == tenant {
			result = append(result, a)
		}
	}
	return result
}

func (s *AuditStore) Delete(id string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.audits, id)
}

func (s *AuditStore) UpdateStatus(id, status string, errMsg string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if a, ok := s.audits[id]; ok {
		a.Status = status
		a.ErrorMsg = errMsg
		a.UpdatedAt = time.Now()
	}
}

// UpdateResult stores the validation outcome and completes the audit.
func (s *AuditStore) UpdateResult(id string, result *model.AuditResult) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if a, ok := s.audits[id]; ok {
		a.Result = result
		a.Status = model.StatusCompleted
		a.UpdatedAt = time.Now()
	}
}

// cleanupIfNeeded removes oldest audits if store exceeds maxAudits
// Must be called with lock held
func (s *AuditStore) cleanupIfNeeded() {
	if s.maxAudits <= 0 {
		return // Unlimited
	}

	if len(s.audits) <= s.maxAudits {
		return
	}

	audits := make([]*model.Audit, 0, len(s.audits))
	for _, a := range s.audits {
		audits = append(audits, a)
	}
	sort.Slice(audits, func(i, j int) bool {
		return audits[i].CreatedAt.Before(audits[j].CreatedAt)
	})

	removeCount := len(audits) - s.maxAudits
	for i := 0; i < removeCount; i++ {
		slog.Info("auto-cleaning old audit",
			"audit_id", audits[i].ID,
			"created_at", audits[i].CreatedAt,
		)
		delete(s.audits, audits[i].ID)
	}
}

// Count returns the number of audits in the store
func (s *AuditStore) Count() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.audits)
}

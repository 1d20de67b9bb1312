package storage

import (
	"sync"
	"time"
)

// Health status values
const (
	StatusHealthy   = "healthy"
	StatusUnhealthy = "unhealthy"
)

// HealthData is the state of one storage backend
type HealthData struct {
	LastCheck time.Time `json:"last_check"`
	Status    string    `json:"status"`
	Message   string    `json:"message,omitempty"`
	Error     string    `json:"error,omitempty"`
	Stored    int       `json:"stored"`
	Failed    int       `json:"failed"`
}

// HealthManager manages storage health status in memory
type HealthManager struct {
	mu     sync.RWMutex
	health map[string]*HealthData
}

// GlobalHealthManager is the singleton instance for health management
var GlobalHealthManager = NewHealthManager()

// NewHealthManager creates a new health manager
func NewHealthManager() *HealthManager {
	return &HealthManager{
		health: make(map[string]*HealthData),
	}
}

func (hm *HealthManager) entry(storageType string) *HealthData {
	h, ok := hm.health[storageType]
	if !ok {
		h = &HealthData{Status: StatusHealthy}
		hm.health[storageType] = h
	}
	return h
}

// UpdateHealth updates the health status for a storage backend, keeping its counters
func (hm *HealthManager) UpdateHealth(storageType, status, message string, err error) {
	hm.mu.Lock()
	defer hm.mu.Unlock()

	h := hm.entry(storageType)
	h.LastCheck = time.Now()
	h.Status = status
	h.Message = message
	h.Error = ""
	if err != nil {
		h.Error = err.Error()
	}
}

// RecordStored counts one stored evaluation
func (hm *HealthManager) RecordStored(storageType string) {
	hm.mu.Lock()
	defer hm.mu.Unlock()

	hm.entry(storageType).Stored++
}

// RecordFailure counts one evaluation the backend could not store
func (hm *HealthManager) RecordFailure(storageType string, err error) {
	hm.mu.Lock()
	defer hm.mu.Unlock()

	h := hm.entry(storageType)
	h.Failed++
	h.LastCheck = time.Now()
	h.Status = StatusUnhealthy
	h.Error = err.Error()
}

// GetHealth retrieves the health status for a specific storage backend
func (hm *HealthManager) GetHealth(storageType string) (HealthData, bool) {
	hm.mu.RLock()
	defer hm.mu.RUnlock()

	health, exists := hm.health[storageType]
	if !exists {
		return HealthData{}, false
	}

	// Return a copy to avoid concurrent modification
	return *health, true
}

// GetAllHealth retrieves all storage health statuses
func (hm *HealthManager) GetAllHealth() map[string]HealthData {
	hm.mu.RLock()
	defer hm.mu.RUnlock()

	result := make(map[string]HealthData, len(hm.health))
	for k, v := range hm.health {
		result[k] = *v
	}

	return result
}

// IsHealthy checks if a storage backend is healthy
func (hm *HealthManager) IsHealthy(storageType string) bool {
	health, exists := hm.GetHealth(storageType)
	return exists && health.Status == StatusHealthy
}

// Reset forgets every backend
func (hm *HealthManager) Reset() {
	hm.mu.Lock()
	defer hm.mu.Unlock()

	clear(hm.health)
}

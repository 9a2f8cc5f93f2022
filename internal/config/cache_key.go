package config

import (
	"fmt"

	"github.com/google/uuid"
)

type CacheKeyStruct struct{}

func NewCacheKeyStruct() *CacheKeyStruct {
	return &CacheKeyStruct{}
}

// AttemptAnswersKey is the hash of autosaved answers, field = question id.
func (r *CacheKeyStruct) AttemptAnswersKey(attemptID uuid.UUID) string {
	return fmt.Sprintf("attempt:%s:answers", attemptID)
}

// AttemptLockKey guards against two live proctor connections for one attempt.
func (r *CacheKeyStruct) AttemptLockKey(attemptID uuid.UUID) string {
	return fmt.Sprintf("attempt:%s:live", attemptID)
}

// ExamMonitorChannel returns the Redis PubSub channel name for an exam monitor
func (r *CacheKeyStruct) ExamMonitorChannel(examID uuid.UUID) string {
	return fmt.Sprintf("exam:%s:monitor", examID)
}

var CacheKey = NewCacheKeyStruct()

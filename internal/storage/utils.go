package storage

import (
	"sync"

	"github.com/chrissnell/hymod/internal/log"
	"github.com/chrissnell/hymod/internal/types"
)

// ProcessEvaluations provides a standard pattern for processing evaluations from a channel.
// It returns once the channel is closed and drained, so results already queued at shutdown
// are still stored. The caller must have added this worker to wg.
func ProcessEvaluations(wg *sync.WaitGroup, evalChan <-chan types.Evaluation, processor func(types.Evaluation) error, name string) {
	defer wg.Done()

	for e := range evalChan {
		if err := processor(e); err != nil {
			log.Errorf("%s evaluation processor error: %v", name, err)
			GlobalHealthManager.RecordFailure(name, err)
			continue
		}
		GlobalHealthManager.RecordStored(name)
	}
	log.Debugf("%s evaluation processor drained", name)
}

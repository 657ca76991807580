package host

import (
	"math/rand"
	"time"

	"github.com/google/uuid"
	"github.com/me/schedpol/internal/config"
	"github.com/me/schedpol/pkg/model"
)

// TaskSpec describes one synthetic task: when it arrives and how much
// CPU-bound work it carries.
type TaskSpec struct {
	ID        model.TaskID
	TGID      model.TGID
	Index     int // child index within its process
	ArrivalNS uint64
	WorkNS    uint64
}

// Workload is a generated population of tasks, tagged with a run id.
type Workload struct {
	RunID string
	Specs []TaskSpec
}

// tgidBase keeps synthetic tgids out of the low range real systems use.
const tgidBase = 1000

// GenerateWorkload builds a workload from the given shape. A zero seed
// derives one from the wall clock; any other seed reproduces the same
// workload exactly.
func GenerateWorkload(cfg config.WorkloadConfig) Workload {
	seed := cfg.Seed
	if seed == 0 {
		seed = time.Now().UnixNano()
	}
	rng := rand.New(rand.NewSource(seed))

	w := Workload{RunID: uuid.NewString()}
	nextID := model.TaskID(1)

	for p := 0; p < cfg.Processes; p++ {
		tgid := model.TGID(tgidBase + p)
		for i := 0; i < cfg.TasksPerProcess; i++ {
			spec := TaskSpec{
				ID:    nextID,
				TGID:  tgid,
				Index: i,
			}
			if cfg.MaxArrivalDelayMS > 0 {
				spec.ArrivalNS = uint64(rng.Intn(cfg.MaxArrivalDelayMS+1)) * 1_000_000
			}
			span := cfg.MaxWorkMS - cfg.MinWorkMS
			workMS := cfg.MinWorkMS
			if span > 0 {
				workMS += rng.Intn(span + 1)
			}
			spec.WorkNS = uint64(workMS) * 1_000_000
			w.Specs = append(w.Specs, spec)
			nextID++
		}
	}
	return w
}

// TotalWorkNS sums the CPU-bound work across all tasks.
func (w Workload) TotalWorkNS() uint64 {
	var total uint64
	for _, s := range w.Specs {
		total += s.WorkNS
	}
	return total
}

package sim

import (
	"log/slog"

	"github.com/mlange-42/ark/ecs"

	"github.com/pthm-cable/meadow/ai"
	"github.com/pthm-cable/meadow/components"
)

// assignTimeout is how long an assigned task may sit without completing
// before Sync requeues its resource. Covers workers that fled or died
// mid-task without handing the task back.
const assignTimeout = 30.0

// HarvestQueue hands harvest tasks to workers. It implements
// ai.TaskSource; workers never see resource internals, only the work
// location and the completion flag.
type HarvestQueue struct {
	world    *ecs.World
	log      *slog.Logger
	workRate float32
	now      float64 // sim time, advanced by Sync

	queue    []components.Task
	queued   map[ecs.Entity]bool
	assigned map[ecs.Entity]float64 // target -> sim time of assignment

	resMap  *ecs.Map[components.Resource]
	metaMap *ecs.Map[components.Meta]
}

var _ ai.TaskSource = (*HarvestQueue)(nil)

// NewHarvestQueue creates an empty queue bound to the registry.
func NewHarvestQueue(world *ecs.World, workRate float32, log *slog.Logger) *HarvestQueue {
	return &HarvestQueue{
		world:    world,
		log:      log,
		workRate: workRate,
		queued:   make(map[ecs.Entity]bool),
		assigned: make(map[ecs.Entity]float64),
		resMap:   ecs.NewMap[components.Resource](world),
		metaMap:  ecs.NewMap[components.Meta](world),
	}
}

// CreateHarvestTask builds a harvest task targeting the given resource.
func (q *HarvestQueue) CreateHarvestTask(target ecs.Entity, workX, workY float32, job components.JobType) components.Task {
	return components.Task{
		Target: target,
		WorkX:  workX,
		WorkY:  workY,
		Job:    job,
		Active: true,
	}
}

// AssignTask pushes a task directly onto an agent, bypassing the queue.
func (q *HarvestQueue) AssignTask(task components.Task, agent *components.Agent) {
	agent.Task = task
	q.assigned[task.Target] = q.now
}

// Enqueue adds a task unless its target is already queued or assigned.
func (q *HarvestQueue) Enqueue(task components.Task) {
	if q.queued[task.Target] {
		return
	}
	if _, ok := q.assigned[task.Target]; ok {
		return
	}
	q.queue = append(q.queue, task)
	q.queued[task.Target] = true
}

// HasWork reports whether any task is queued for the job.
func (q *HarvestQueue) HasWork(job components.JobType) bool {
	for _, t := range q.queue {
		if t.Job == job {
			return true
		}
	}
	return false
}

// RequestNextTask pops the oldest queued task for the job, or nil.
func (q *HarvestQueue) RequestNextTask(agentID uint32, job components.JobType) *components.Task {
	for i, t := range q.queue {
		if t.Job != job {
			continue
		}
		q.queue = append(q.queue[:i], q.queue[i+1:]...)
		delete(q.queued, t.Target)
		q.assigned[t.Target] = q.now
		q.log.Debug("task assigned", "agent", agentID, "job", t.Job)
		task := t
		return &task
	}
	return nil
}

// ExecuteTask harvests from the task's resource at the work rate.
// Completed when the resource is depleted or gone.
func (q *HarvestQueue) ExecuteTask(dt float32, ctx *ai.Context, task *components.Task) bool {
	if !q.world.Alive(task.Target) {
		q.finish(task.Target)
		return true
	}
	meta := q.metaMap.Get(task.Target)
	res := q.resMap.Get(task.Target)
	if meta == nil || res == nil || !meta.Active || res.Yield <= 0 {
		q.finish(task.Target)
		return true
	}
	bite := q.workRate * dt
	if bite > res.Yield {
		bite = res.Yield
	}
	res.Yield -= bite
	if res.Yield <= 0 {
		q.finish(task.Target)
		return true
	}
	return false
}

func (q *HarvestQueue) finish(target ecs.Entity) {
	delete(q.assigned, target)
}

// Sync requeues live, yielding resources whose assignments went stale
// and drops queue entries whose targets died. Called at a low cadence
// by the scheduler.
func (q *HarvestQueue) Sync(now float64) {
	q.now = now
	for target, since := range q.assigned {
		if now-since > assignTimeout {
			delete(q.assigned, target)
		}
	}
	kept := q.queue[:0]
	for _, t := range q.queue {
		if !q.world.Alive(t.Target) {
			delete(q.queued, t.Target)
			continue
		}
		meta := q.metaMap.Get(t.Target)
		res := q.resMap.Get(t.Target)
		if meta == nil || res == nil || !meta.Active || res.Yield <= 0 {
			delete(q.queued, t.Target)
			continue
		}
		kept = append(kept, t)
	}
	q.queue = kept
}

package models

// ThreadState is the scheduler/VM state reported in a thread dump header.
type ThreadState string

const (
	ThreadStateRunnable     ThreadState = "Runnable"
	ThreadStateBlocked      ThreadState = "Blocked"
	ThreadStateWaiting      ThreadState = "Waiting"
	ThreadStateTimedWaiting ThreadState = "TimedWaiting"
	ThreadStateSleeping     ThreadState = "Sleeping"
	ThreadStateNative       ThreadState = "Native"
	ThreadStateSuspended    ThreadState = "Suspended"
	ThreadStateUnknown      ThreadState = "Unknown"
)

// FrameKind distinguishes Java from native backtrace frames.
type FrameKind string

const (
	FrameJava   FrameKind = "java"
	FrameNative FrameKind = "native"
)

// StackFrame is one frame of a thread's stack.
type StackFrame struct {
	Kind FrameKind `json:"kind"`

	// Symbol is "Class.method" for Java frames, the function (or library)
	// name for native frames.
	Symbol string `json:"symbol"`

	// Source is "File.java:123" for Java frames, the mapped object path
	// for native frames.
	Source string `json:"source,omitempty"`

	Raw string `json:"raw"`
}

// LockInfo describes a monitor a thread waits on or holds.
// HeldByTid is 0 when the holder is unknown (valid tids start at 1).
type LockInfo struct {
	Address   string `json:"address"`
	ClassName string `json:"class_name"`
	HeldByTid int    `json:"held_by_tid,omitempty"`
}

// ThreadInfo is one thread snapshot from an ANR trace.
// Tid is unique within one trace.
type ThreadInfo struct {
	Name     string      `json:"name"`
	Tid      int         `json:"tid"`
	SysTid   int         `json:"sys_tid,omitempty"`
	Priority int         `json:"priority,omitempty"`
	State    ThreadState `json:"state"`
	Daemon   bool        `json:"daemon"`

	StackFrames   []StackFrame `json:"stack_frames"`
	WaitingOnLock *LockInfo    `json:"waiting_on_lock,omitempty"`
	HeldLocks     []LockInfo   `json:"held_locks,omitempty"`

	Raw string `json:"raw"`
}

// LockNode is a vertex of the wait-for graph.
type LockNode struct {
	Tid        int    `json:"tid"`
	ThreadName string `json:"thread_name"`
}

// LockEdge records that thread From waits for a lock held by thread To.
type LockEdge struct {
	From          int    `json:"from"`
	To            int    `json:"to"`
	LockAddress   string `json:"lock_address"`
	LockClassName string `json:"lock_class_name"`
}

// LockGraph is the wait-for graph built from a thread dump. Every edge's
// endpoints reference a node; edges exist 1:1 with threads whose
// WaitingOnLock names a holder.
type LockGraph struct {
	Nodes []LockNode `json:"nodes"`
	Edges []LockEdge `json:"edges"`
}

// DeadlockCycle is one cycle found in the wait-for graph, always spanning
// at least two threads.
type DeadlockCycle struct {
	Threads []string `json:"threads"`
	Tids    []int    `json:"tids"`
	Locks   []string `json:"locks"`
}

// DeadlockInfo summarizes deadlock detection over one trace.
type DeadlockInfo struct {
	Detected bool            `json:"detected"`
	Cycles   []DeadlockCycle `json:"cycles,omitempty"`
}

// BlockReason classifies why the analyzed thread is not making progress.
type BlockReason string

const (
	BlockDeadlock                BlockReason = "deadlock"
	BlockLockContention          BlockReason = "lock_contention"
	BlockIOOnMainThread          BlockReason = "io_on_main_thread"
	BlockNetworkOnMainThread     BlockReason = "network_on_main_thread"
	BlockSlowBinderCall          BlockReason = "slow_binder_call"
	BlockExpensiveRendering      BlockReason = "expensive_rendering"
	BlockContentProviderSlow     BlockReason = "content_provider_slow"
	BlockBroadcastBlocking       BlockReason = "broadcast_blocking"
	BlockSlowAppStartup          BlockReason = "slow_app_startup"
	BlockBinderPoolExhaustion    BlockReason = "binder_pool_exhaustion"
	BlockIdleMainThread          BlockReason = "idle_main_thread"
	BlockHeavyComputation        BlockReason = "heavy_computation"
	BlockSystemOverloadCandidate BlockReason = "system_overload_candidate"
	BlockNoStackFrames           BlockReason = "no_stack_frames"
	BlockUnknown                 BlockReason = "unknown"

	// Reserved variants. Declared for forward compatibility with richer
	// trace inputs; the classifier never assigns them.
	BlockConsecutiveBinderCalls BlockReason = "consecutive_binder_calls"
	BlockGoAsyncNotFinished     BlockReason = "go_async_not_finished"
	BlockOOMMemoryPressure      BlockReason = "oom_memory_pressure"
	BlockGPUHang                BlockReason = "gpu_hang"
)

// Confidence grades how reliable a block classification is.
type Confidence string

const (
	ConfidenceHigh   Confidence = "high"
	ConfidenceMedium Confidence = "medium"
	ConfidenceLow    Confidence = "low"
)

// BinderTarget identifies the HAL or Binder interface a thread is calling into.
type BinderTarget struct {
	Interface string `json:"interface"`
	Method    string `json:"method,omitempty"`
	Caller    string `json:"caller,omitempty"`
}

// ThreadBlockAnalysis is the classification result for one thread.
type ThreadBlockAnalysis struct {
	Thread      *ThreadInfo `json:"thread"`
	BlockReason BlockReason `json:"block_reason"`

	// BlockingChain lists thread names transitively holding the resource
	// this thread needs, nearest holder first.
	BlockingChain []string `json:"blocking_chain,omitempty"`

	Confidence Confidence `json:"confidence"`

	BinderTarget           *BinderTarget  `json:"binder_target,omitempty"`
	SuspectedBinderTargets []BinderTarget `json:"suspected_binder_targets,omitempty"`
}

// BinderPoolInfo summarizes the binder thread pool of a process.
type BinderPoolInfo struct {
	Total     int  `json:"total"`
	Idle      int  `json:"idle"`
	Busy      int  `json:"busy"`
	Exhausted bool `json:"exhausted"`
}

// ANRTraceAnalysis is the full output of parsing one ANR trace.
type ANRTraceAnalysis struct {
	Pid         int    `json:"pid"`
	ProcessName string `json:"process_name"`
	Subject     string `json:"subject,omitempty"`

	Threads []ThreadInfo `json:"threads"`

	MainThread *ThreadBlockAnalysis `json:"main_thread,omitempty"`

	// BlockedThread is set when a Subject: header names a thread other
	// than the resolved main thread; downstream consumers prefer it.
	BlockedThread     *ThreadBlockAnalysis `json:"blocked_thread,omitempty"`
	BlockedThreadName string               `json:"blocked_thread_name,omitempty"`

	LockGraph     LockGraph      `json:"lock_graph"`
	Deadlocks     DeadlockInfo   `json:"deadlocks"`
	BinderThreads BinderPoolInfo `json:"binder_threads"`
}

package core

// JobState 是作业在流水线中所处的阶段。状态只能向前推进，不可回退。
type JobState string

const (
	StateNew         JobState = "NEW"
	StateProfiled    JobState = "PROFILED"
	StateAnalysed    JobState = "ANALYSED"
	StateRecommended JobState = "RECOMMENDED"
)

var stateRank = map[JobState]int{
	StateNew:         0,
	StateProfiled:    1,
	StateAnalysed:    2,
	StateRecommended: 3,
}

// Rank 返回状态的先后顺序，未知状态视为最早的NEW。
func (s JobState) Rank() int {
	return stateRank[s]
}

// ShouldAdvance 判断是否应该从当前状态推进到next。重复执行早期阶段不会使状态回退。
func ShouldAdvance(current, next JobState) bool {
	return next.Rank() > current.Rank()
}

// Category 是作业的SLA类别。除了内置的时间类别外，还可能是自定义SLA文件指定的任意标签。
type Category string

const (
	CategoryHourly   Category = "hourly"
	CategoryTwoHours Category = "two_hours"
	CategoryDaily    Category = "daily"
	CategoryWeekly   Category = "weekly"
	CategoryMonthly  Category = "monthly"
)

type CategorySource string

const (
	CategorySourceComputed CategorySource = "computed"
	CategorySourceCustom   CategorySource = "custom-override"
)

type RecommendationSource string

const (
	SourceHeuristic RecommendationSource = "heuristic"
	SourceAIClamped RecommendationSource = "ai-clamped"
)

// 利用率状态，由分析阶段根据平均CPU与内存用量计算
const (
	UtilNormal        = "normal"
	UtilUnderutilised = "underutilised"
	UtilOverutilised  = "overutilised"
)

// Job 是一次在某集群上运行的应用，由(ClusterName, AppId)唯一确定。
type Job struct {
	ClusterName    string
	AppId          string
	User           string
	Name           string
	Queue          string
	YarnState      string
	FinalStatus    string
	StartedTime    int64
	FinishedTime   int64
	ElapsedMillis  int64
	MemorySeconds  int64 // MB·s
	VcoreSeconds   int64
	State          JobState
	Category       Category
	CategorySource CategorySource
	UtilStatus     string
	AvgCpuCores    float64
	AvgMemoryMB    float64
	Notes          string
}

// ExecutorMetric 是单个executor的资源使用记录，由(ClusterName, AppId, ExecutorId)唯一确定。
// 每次重新采集同一作业时整体替换，仅用于计算作业级平均值。
type ExecutorMetric struct {
	ClusterName         string
	AppId               string
	ExecutorId          string
	Cores               int
	MaxMemory           int64 // 字节
	MemoryUsed          int64 // 字节
	TotalTasks          int
	CompletedTasks      int
	TotalDurationMillis int64
	TotalGCTimeMillis   int64
}

// CoreSeconds 返回该executor消耗的核·秒
func (m *ExecutorMetric) CoreSeconds() float64 {
	return float64(m.Cores) * float64(m.TotalDurationMillis) / 1000
}

// MemorySecondsMB 返回该executor消耗的MB·秒
func (m *ExecutorMetric) MemorySecondsMB() float64 {
	return float64(m.MemoryUsed) / (1 << 20) * float64(m.TotalDurationMillis) / 1000
}

// JobAverages 是作业在executor层面上的聚合指标
type JobAverages struct {
	NumExecutors  int
	AvgCpuSeconds float64 // 各executor核·秒的平均值
	AvgMemSeconds float64 // 各executor MB·秒的平均值
}

// Recommendation 是一条资源配置建议。一旦写入不再修改，修正以新版本的形式追加。
type Recommendation struct {
	ClusterName      string
	AppId            string
	Version          uint
	Category         Category
	NumExecutors     int
	ExecutorMemoryMB int
	ExecutorCores    int
	Source           RecommendationSource
	Notes            string
}

// SizingSuggestion 是外部（如大模型）给出的候选配置。字段可能缺失，
// 数值不可信，使用前必须经过SizingLimits的范围约束。
type SizingSuggestion struct {
	NumExecutors     *int
	ExecutorCores    *int
	ExecutorMemoryMB *int
	RawText          string
}

// SizingLimits 是部署级别的资源上下限，启发式结果与外部建议都必须落在范围内。
type SizingLimits struct {
	MinExecutors           int
	MaxExecutors           int
	MinCores               int
	MaxCores               int
	MinMemoryMB            int
	MaxMemoryMB            int
	PerExecutorMemBaseline int // 每个executor的基准内存，MB
}

func clampInt(v, min, max int) int {
	if v < min {
		return min
	}
	if v > max {
		return max
	}
	return v
}

func (l SizingLimits) ClampExecutors(v int) int {
	return clampInt(v, l.MinExecutors, l.MaxExecutors)
}

func (l SizingLimits) ClampCores(v int) int {
	return clampInt(v, l.MinCores, l.MaxCores)
}

func (l SizingLimits) ClampMemoryMB(v int) int {
	return clampInt(v, l.MinMemoryMB, l.MaxMemoryMB)
}

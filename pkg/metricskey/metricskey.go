package metricskey

import "github.com/effective-security/metrics"

// Stats
var (
	StatsRunsSucceeded = metrics.Describe{
		Type:         metrics.TypeCounter,
		Name:         "stats_runs_succeeded",
		Help:         "stats_runs_succeeded provides total agent runs completed",
		RequiredTags: []string{"agent"},
	}

	StatsRunsFailed = metrics.Describe{
		Type:         metrics.TypeCounter,
		Name:         "stats_runs_failed",
		Help:         "stats_runs_failed provides total agent runs failed",
		RequiredTags: []string{"agent"},
	}

	StatsRunsMaxTurns = metrics.Describe{
		Type:         metrics.TypeCounter,
		Name:         "stats_runs_max_turns",
		Help:         "stats_runs_max_turns provides total agent runs stopped at the turn bound",
		RequiredTags: []string{"agent"},
	}

	StatsToolCallsSucceeded = metrics.Describe{
		Type:         metrics.TypeCounter,
		Name:         "stats_tool_calls_succeeded",
		Help:         "stats_tool_calls_succeeded provides total tool calls succeeded",
		RequiredTags: []string{"tool"},
	}

	StatsToolCallsFailed = metrics.Describe{
		Type:         metrics.TypeCounter,
		Name:         "stats_tool_calls_failed",
		Help:         "stats_tool_calls_failed provides total tool calls failed",
		RequiredTags: []string{"tool"},
	}

	StatsToolCallsNotFound = metrics.Describe{
		Type:         metrics.TypeCounter,
		Name:         "stats_tool_calls_not_found",
		Help:         "stats_tool_calls_not_found provides total tool calls to unknown tools",
		RequiredTags: []string{"tool"},
	}

	StatsToolCallsInvalidArgs = metrics.Describe{
		Type:         metrics.TypeCounter,
		Name:         "stats_tool_calls_invalid_args",
		Help:         "stats_tool_calls_invalid_args provides total tool calls rejected by schema validation",
		RequiredTags: []string{"tool"},
	}

	StatsRemoteTimeouts = metrics.Describe{
		Type:         metrics.TypeCounter,
		Name:         "stats_remote_timeouts",
		Help:         "stats_remote_timeouts provides total remote invocations that timed out",
		RequiredTags: []string{"connection"},
	}

	StatsRemoteDisconnects = metrics.Describe{
		Type:         metrics.TypeCounter,
		Name:         "stats_remote_disconnects",
		Help:         "stats_remote_disconnects provides total remote invocations that lost the connection",
		RequiredTags: []string{"connection"},
	}

	StatsRemoteDiscoveries = metrics.Describe{
		Type:         metrics.TypeCounter,
		Name:         "stats_remote_discoveries",
		Help:         "stats_remote_discoveries provides total discovery rounds per connection",
		RequiredTags: []string{"connection"},
	}

	StatsWorkflowsSucceeded = metrics.Describe{
		Type:         metrics.TypeCounter,
		Name:         "stats_workflows_succeeded",
		Help:         "stats_workflows_succeeded provides total workflows completed",
		RequiredTags: []string{"mode"},
	}

	StatsWorkflowsFailed = metrics.Describe{
		Type:         metrics.TypeCounter,
		Name:         "stats_workflows_failed",
		Help:         "stats_workflows_failed provides total workflows failed",
		RequiredTags: []string{"mode"},
	}
)

// Perf
var (
	PerfRun = metrics.Describe{
		Type:         metrics.TypeSample,
		Name:         "perf_run",
		Help:         "perf_run provides duration of an agent run",
		RequiredTags: []string{"agent"},
	}

	PerfToolCall = metrics.Describe{
		Type:         metrics.TypeSample,
		Name:         "perf_tool_call",
		Help:         "perf_tool_call provides duration of tool call",
		RequiredTags: []string{"tool"},
	}

	PerfRemoteCall = metrics.Describe{
		Type:         metrics.TypeSample,
		Name:         "perf_remote_call",
		Help:         "perf_remote_call provides duration of remote capability call",
		RequiredTags: []string{"connection"},
	}
)

// Metrics returns slice of metrics from this repo
// keep sorted by name
var Metrics = []*metrics.Describe{
	&PerfRemoteCall,
	&PerfRun,
	&PerfToolCall,
	&StatsRemoteDisconnects,
	&StatsRemoteDiscoveries,
	&StatsRemoteTimeouts,
	&StatsRunsFailed,
	&StatsRunsMaxTurns,
	&StatsRunsSucceeded,
	&StatsToolCallsFailed,
	&StatsToolCallsInvalidArgs,
	&StatsToolCallsNotFound,
	&StatsToolCallsSucceeded,
	&StatsWorkflowsFailed,
	&StatsWorkflowsSucceeded,
}

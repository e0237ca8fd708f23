package hcl

import "github.com/hashicorp/hcl/v2"

// fileRoot is a struct used to decode all possible top-level blocks from any file.
type fileRoot struct {
	Resolver  *resolverBlock  `hcl:"resolver,block"`
	Conflicts *conflictsBlock `hcl:"conflicts,block"`
	Publisher *publisherBlock `hcl:"publisher,block"`
	Tasks     []*taskBlock    `hcl:"task,block"`
	Remain    hcl.Body        `hcl:",remain"`
}

type resolverBlock struct {
	Strategy             *string `hcl:"strategy,optional"`
	EnableCycleDetection *bool   `hcl:"enable_cycle_detection,optional"`
	EnableMetrics        *bool   `hcl:"enable_metrics,optional"`
	MaxResolutionTime    *string `hcl:"max_resolution_time,optional"`
}

type conflictsBlock struct {
	AutoResolve              *bool    `hcl:"auto_resolve,optional"`
	MaxConcurrentResolutions *int     `hcl:"max_concurrent_resolutions,optional"`
	ResolutionTimeout        *string  `hcl:"resolution_timeout,optional"`
	EnableMetrics            *bool    `hcl:"enable_metrics,optional"`
	MaxAttempts              *int     `hcl:"max_attempts,optional"`
	AllowDeadlineExtension   *bool    `hcl:"allow_deadline_extension,optional"`
	DeadlineBuffer           *string  `hcl:"deadline_buffer,optional"`
	OptimisticFactor         *float64 `hcl:"optimistic_factor,optional"`
}

type publisherBlock struct {
	URL                string  `hcl:"url"`
	Namespace          *string `hcl:"namespace,optional"`
	ConnectTimeout     *string `hcl:"connect_timeout,optional"`
	InsecureSkipVerify *bool   `hcl:"insecure_skip_verify,optional"`
}

type taskBlock struct {
	ID        string         `hcl:"id,label"`
	Priority  *float64       `hcl:"priority,optional"`
	Duration  *string        `hcl:"duration,optional"`
	Resources []string       `hcl:"resources,optional"`
	Deadline  *string        `hcl:"deadline,optional"`
	Critical  *bool          `hcl:"critical,optional"`
	DependsOn []string       `hcl:"depends_on,optional"`
	State     *string        `hcl:"state,optional"`
	Extra     hcl.Expression `hcl:"extra,optional"`
	DeclRange hcl.Range      `hcl:",def_range"`
}

package tuning

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

type Tuning struct {
	TickRateHz int `yaml:"tick_rate_hz"`

	Nav        Nav        `yaml:"nav"`
	Behavior   Behavior   `yaml:"behavior"`
	Contention Contention `yaml:"contention"`
	Sched      Sched      `yaml:"sched"`
}

type Nav struct {
	MaxNodes int `yaml:"max_nodes"`
}

type Behavior struct {
	HeavyEveryTicks int `yaml:"heavy_every_ticks"`

	StuckThreshold  float64 `yaml:"stuck_threshold"`
	StuckTimeoutMs  int     `yaml:"stuck_timeout_ms"`
	GlobalTimeoutMs int     `yaml:"global_timeout_ms"`

	DetectRadius       float64 `yaml:"detect_radius"`
	DoorPriorityRadius float64 `yaml:"door_priority_radius"`
	// Radius inside which a target may interrupt an active breach. Tighter
	// than DetectRadius so distant targets do not abort door work.
	InterruptRadius float64 `yaml:"interrupt_radius"`

	AttackRange     float64 `yaml:"attack_range"`
	DoorAttackRange float64 `yaml:"door_attack_range"`
	AttackDamage    float64 `yaml:"attack_damage"`
	DoorDamage      float64 `yaml:"door_damage"`

	RepathIntervalMs    int     `yaml:"repath_interval_ms"`
	TargetLostTimeoutMs int     `yaml:"target_lost_timeout_ms"`
	GoalReachedDistance float64 `yaml:"goal_reached_distance"`
	WaypointRadius      float64 `yaml:"waypoint_radius"`

	RecoverMinDistance float64 `yaml:"recover_min_distance"`
	RecoverMaxDistance float64 `yaml:"recover_max_distance"`

	MaxSpeed       float64 `yaml:"max_speed"`
	Accel          float64 `yaml:"accel"`
	Drag           float64 `yaml:"drag"`
	JumpVelocity   float64 `yaml:"jump_velocity"`
	JumpDelta      float64 `yaml:"jump_delta"`
	JumpCooldownMs int     `yaml:"jump_cooldown_ms"`
}

type Contention struct {
	MaxHealth     float64 `yaml:"max_health"`
	MaxAttackers  int     `yaml:"max_attackers"`
	IdleTimeoutMs int     `yaml:"idle_timeout_ms"`
}

type Sched struct {
	Workers           int `yaml:"workers"` // 0 = GOMAXPROCS
	RefreshQueueSize  int `yaml:"refresh_queue_size"`
	RefreshIntervalMs int `yaml:"refresh_interval_ms"`
	CacheTTLMs        int `yaml:"cache_ttl_ms"`
	SweepIntervalMs   int `yaml:"sweep_interval_ms"`
	CleanupIntervalMs int `yaml:"cleanup_interval_ms"`
	ScanConcurrency   int `yaml:"scan_concurrency"`
}

func Defaults() Tuning {
	return Tuning{
		TickRateHz: 20,
		Nav: Nav{
			MaxNodes: 1000,
		},
		Behavior: Behavior{
			HeavyEveryTicks:     5,
			StuckThreshold:      0.5,
			StuckTimeoutMs:      3000,
			GlobalTimeoutMs:     300000,
			DetectRadius:        24,
			DoorPriorityRadius:  12,
			InterruptRadius:     5,
			AttackRange:         2.5,
			DoorAttackRange:     3.0,
			AttackDamage:        10,
			DoorDamage:          50,
			RepathIntervalMs:    5000,
			TargetLostTimeoutMs: 10000,
			GoalReachedDistance: 2.0,
			WaypointRadius:      0.8,
			RecoverMinDistance:  5,
			RecoverMaxDistance:  15,
			MaxSpeed:            4.5,
			Accel:               1.2,
			Drag:                0.91,
			JumpVelocity:        5.0,
			JumpDelta:           0.5,
			JumpCooldownMs:      1000,
		},
		Contention: Contention{
			MaxHealth:     2000,
			MaxAttackers:  3,
			IdleTimeoutMs: 30000,
		},
		Sched: Sched{
			Workers:           0,
			RefreshQueueSize:  1024,
			RefreshIntervalMs: 1000,
			CacheTTLMs:        2000,
			SweepIntervalMs:   5000,
			CleanupIntervalMs: 10000,
			ScanConcurrency:   4,
		},
	}
}

// Load reads tuning from a yaml file over the defaults: absent keys keep
// their default values.
func Load(path string) (Tuning, error) {
	t := Defaults()
	raw, err := os.ReadFile(path)
	if err != nil {
		return t, err
	}
	if err := yaml.Unmarshal(raw, &t); err != nil {
		return t, fmt.Errorf("tuning.yaml: %w", err)
	}
	return t, nil
}

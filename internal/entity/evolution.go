package entity

// EvolutionBestParam is the per-run winning parameter set for one strategy
// variant. Params and stats are stored as JSON text. History is append-only.
type EvolutionBestParam struct {
	ID         uint    `gorm:"column:id;primaryKey;autoIncrement"`
	Strategy   string  `gorm:"column:strategy"`
	RunAt      string  `gorm:"column:run_at"` // ISO-8601, second precision
	ParamsJSON string  `gorm:"column:params_json"`
	StatsJSON  string  `gorm:"column:stats_json"`
	Score      float64 `gorm:"column:score"`
}

func (EvolutionBestParam) TableName() string {
	return "evolution_best_params"
}

// EvolutionRunHistory records every grid-search run, winning or not.
type EvolutionRunHistory struct {
	ID         uint    `gorm:"column:id;primaryKey;autoIncrement"`
	Strategy   string  `gorm:"column:strategy"`
	RunAt      string  `gorm:"column:run_at"`
	ParamsJSON string  `gorm:"column:params_json"`
	StatsJSON  string  `gorm:"column:stats_json"`
	Score      float64 `gorm:"column:score"`
}

func (EvolutionRunHistory) TableName() string {
	return "evolution_run_history"
}

// EvolutionAIBest mirrors EvolutionBestParam for the AI-assisted variants.
type EvolutionAIBest struct {
	ID         uint    `gorm:"column:id;primaryKey;autoIncrement"`
	Strategy   string  `gorm:"column:strategy"`
	RunAt      string  `gorm:"column:run_at"`
	ParamsJSON string  `gorm:"column:params_json"`
	StatsJSON  string  `gorm:"column:stats_json"`
	Score      float64 `gorm:"column:score"`
}

func (EvolutionAIBest) TableName() string {
	return "evolution_ai_best"
}

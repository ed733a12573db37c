package models

// Requests for pricing HTTP endpoints. Defined in domain for consistency and reuse.

type SignalsRequest struct {
	ProductID string  `param:"product_id" json:"product_id" validate:"required"`
	YourPrice float64 `query:"your_price" json:"your_price" validate:"gte=0"`
}

type KPIsRequest struct {
	Refresh bool `query:"refresh" json:"refresh"`
}

type PredictRequest struct {
	ProductID   string `param:"product_id" json:"product_id" validate:"required"`
	HorizonDays int    `query:"horizon_days" json:"horizon_days" default:"14" validate:"gte=7,lte=30"`
	Save        *bool  `query:"save" json:"save" default:"true"`
	Async       bool   `query:"async" json:"async"`
}

type LatestForecastRequest struct {
	ProductID string `param:"product_id" json:"product_id" validate:"required"`
	Limit     int    `query:"limit" json:"limit" default:"14" validate:"gte=1,lte=60"`
}

type ElasticityRequest struct {
	ProductID string  `param:"product_id" json:"product_id" validate:"required"`
	YourPrice float64 `query:"your_price" json:"your_price" validate:"gte=0"`
}

type OptimizeRequest struct {
	ProductID string `param:"product_id" json:"product_id" validate:"required"`
	Save      *bool  `query:"save" json:"save" default:"true"`
}

type ScenariosRequest struct {
	ProductID string `param:"product_id" json:"product_id" validate:"required"`
}

type RecommendationsRequest struct {
	Limit int `query:"limit" json:"limit" default:"50" validate:"gte=1,lte=200"`
}

type EvaluateRequest struct {
	ProductID string `param:"product_id" json:"product_id" validate:"required"`
}

type HistoryRequest struct {
	ProductID string `param:"product_id" json:"product_id" validate:"required"`
	Window    string `query:"window" json:"window" default:"90d" validate:"oneof=30d 90d 180d"`
	Limit     int    `query:"limit" json:"limit" default:"90" validate:"gte=1,lte=500"`
}

type SimulateRequest struct {
	ProductID string `param:"product_id" json:"product_id" validate:"required"`
	Days      int    `query:"days" json:"days" default:"365" validate:"gte=1,lte=730"`
	Async     bool   `query:"async" json:"async"`
}

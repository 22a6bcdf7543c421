package config

const (
	EnvPrefix = "RELIEF"

	AppEnvDev  = "dev"
	AppEnvProd = "prod"
)

// Variables named in validation errors and tests.
const (
	EnvAppEnv = "RELIEF_APP_ENV"
	EnvPort   = "RELIEF_APP_PORT"

	EnvDBDSN      = "RELIEF_DB_DSN"
	EnvDBHost     = "RELIEF_DB_HOST"
	EnvDBUser     = "RELIEF_DB_USER"
	EnvDBPassword = "RELIEF_DB_PASSWORD"
	EnvDBName     = "RELIEF_DB_NAME"

	EnvRedisURL     = "RELIEF_REDIS_URL"
	EnvJWTSecret    = "RELIEF_JWT_SECRET"
	EnvJWTIssuer    = "RELIEF_JWT_ISSUER"
	EnvGCPProjectID = "RELIEF_GCP_PROJECT_ID"
	EnvGCSBucket    = "RELIEF_GCS_BUCKET_NAME"

	EnvOutboxBatchSize = "RELIEF_OUTBOX_PUBLISH_BATCH_SIZE"

	EnvProofVarianceTolerance = "RELIEF_WORKFLOW_PROOF_VARIANCE_TOLERANCE_PCT"
	EnvConflictRetries        = "RELIEF_WORKFLOW_CONFLICT_RETRIES"
	EnvMaxEvidenceKeys        = "RELIEF_WORKFLOW_MAX_EVIDENCE_KEYS"
)

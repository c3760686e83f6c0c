package log

// Common field names for structured logging
const (
	FieldComponent       = "component"
	FieldRequestID       = "request_id"
	FieldClientIP        = "client_ip"
	FieldMethod          = "method"
	FieldPath            = "path"
	FieldQuery           = "query"
	FieldStatusCode      = "status_code"
	FieldDuration        = "duration_ms"
	FieldUserAgent       = "user_agent"
	FieldSuccess         = "success"
	FieldError           = "error"
	FieldErrorKind       = "error_kind"
	FieldOperation       = "operation"
	FieldIntent          = "intent"
	FieldPeriod          = "period"
	FieldCategory        = "category"
	FieldSnapshotVersion = "snapshot_version"
	FieldBackend         = "backend"
	FieldSheet           = "sheet"
	FieldRows            = "rows"
	FieldCacheHit        = "cache_hit"
)

// Components defines standard component names
const (
	ComponentApp      = "app"
	ComponentHTTP     = "http"
	ComponentLedger   = "ledger"
	ComponentCopilot  = "copilot"
	ComponentTables   = "tables"
	ComponentStorage  = "storage"
	ComponentAMQP     = "amqp"
	ComponentWorker   = "worker"
	ComponentCache    = "cache"
	ComponentTrace    = "trace"
	ComponentBackend  = "backend"
	ComponentCLI      = "cli"
	ComponentSecurity = "security"
	ComponentAPI      = "api"
)

// Operations defines standard operation names
const (
	OpAsk      = "ask"
	OpCompute  = "compute"
	OpReload   = "reload"
	OpImport   = "import"
	OpPublish  = "publish"
	OpConsume  = "consume"
	OpShutdown = "shutdown"
	OpStartup  = "startup"
)

// LogFields provides a builder pattern for structured log fields
type LogFields map[string]any

func NewFields() LogFields {
	return make(LogFields)
}

func (f LogFields) WithComponent(component string) LogFields {
	f[FieldComponent] = component
	return f
}

func (f LogFields) WithClientIP(ip string) LogFields {
	f[FieldClientIP] = ip
	return f
}

// WithError adds error field; nil errors are skipped
func (f LogFields) WithError(err error) LogFields {
	if err != nil {
		f[FieldError] = err.Error()
	}
	return f
}

func (f LogFields) WithOperation(op string) LogFields {
	f[FieldOperation] = op
	return f
}

// WithQuery adds the fields that identify a classified question
func (f LogFields) WithQuery(query, intent, period string) LogFields {
	f[FieldQuery] = query
	f[FieldIntent] = intent
	f[FieldPeriod] = period
	return f
}

// WithSnapshot adds ledger snapshot fields
func (f LogFields) WithSnapshot(version uint64, backend string, rows int) LogFields {
	f[FieldSnapshotVersion] = version
	f[FieldBackend] = backend
	f[FieldRows] = rows
	return f
}

func (f LogFields) WithHTTPRequest(method, path, query, userAgent string) LogFields {
	f[FieldMethod] = method
	f[FieldPath] = path
	f[FieldQuery] = query
	f[FieldUserAgent] = userAgent
	return f
}

func (f LogFields) WithHTTPResponse(statusCode int, durationMs int64, success bool) LogFields {
	f[FieldStatusCode] = statusCode
	f[FieldDuration] = durationMs
	f[FieldSuccess] = success
	return f
}

// ToSlice converts LogFields to a slice for slog
func (f LogFields) ToSlice() []any {
	slice := make([]any, 0, len(f)*2)
	for k, v := range f {
		slice = append(slice, k, v)
	}
	return slice
}

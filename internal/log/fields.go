package log

// Field names shared by every component.
const (
	FieldComponent  = "component"
	FieldRequestID  = "request_id"
	FieldClientIP   = "client_ip"
	FieldMethod     = "method"
	FieldPath       = "path"
	FieldQuery      = "query"
	FieldStatusCode = "status_code"
	FieldDuration   = "duration_ms"
	FieldError      = "error"
	FieldOperation  = "operation"
	FieldEndpoint   = "endpoint"
	FieldRoute      = "route"
	FieldEntityID   = "entity_id"
	FieldState      = "state"
	FieldCount      = "count"
	FieldSnapshotID = "snapshot_id"
	FieldSheetsRef  = "sheets_ref"
)

const (
	ComponentApp         = "app"
	ComponentHTTP        = "http"
	ComponentAddon       = "addon"
	ComponentCoordinator = "coordinator"
	ComponentSensor      = "sensor"
	ComponentPublisher   = "publisher"
	ComponentHass        = "hass"
	ComponentStorage     = "storage"
	ComponentAMQP        = "amqp"
	ComponentWorker      = "worker"
	ComponentSheets      = "sheets"
	ComponentCache       = "cache"
	ComponentCLI         = "cli"
)

// Operation names for FieldOperation.
const (
	OpRefresh  = "refresh"
	OpPublish  = "publish"
	OpRecord   = "record"
	OpExport   = "export"
	OpPrune    = "prune"
	OpHistory  = "history"
	OpShutdown = "shutdown"
	OpStartup  = "startup"
	OpSetup    = "setup"
)

// LogFields collects attributes before a single log call.
type LogFields map[string]any

func NewFields() LogFields {
	return make(LogFields)
}

// WithEntity adds the entity ID and, when known, its state.
func (f LogFields) WithEntity(entityID, state string) LogFields {
	f[FieldEntityID] = entityID
	if state != "" {
		f[FieldState] = state
	}
	return f
}

func (f LogFields) WithError(err error) LogFields {
	if err != nil {
		f[FieldError] = err.Error()
	}
	return f
}

func (f LogFields) WithOperation(op string) LogFields {
	if op != "" {
		f[FieldOperation] = op
	}
	return f
}

func (f LogFields) withRequest(method, path, query, clientIP string) LogFields {
	f[FieldMethod] = method
	f[FieldPath] = path
	f[FieldClientIP] = clientIP
	if query != "" {
		f[FieldQuery] = query
	}
	return f
}

// ToSlice flattens the fields into slog key/value arguments.
func (f LogFields) ToSlice() []any {
	out := make([]any, 0, len(f)*2)
	for k, v := range f {
		out = append(out, k, v)
	}
	return out
}

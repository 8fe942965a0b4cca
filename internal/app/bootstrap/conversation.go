package bootstrap

import (
	"strings"

	"github.com/aws/aws-sdk-go-v2/service/sqs"

	"github.com/wolfman30/dealer-ai-platform/internal/catalog"
	appconfig "github.com/wolfman30/dealer-ai-platform/internal/config"
	"github.com/wolfman30/dealer-ai-platform/internal/conversation"
	"github.com/wolfman30/dealer-ai-platform/internal/crm"
	"github.com/wolfman30/dealer-ai-platform/internal/events"
	"github.com/wolfman30/dealer-ai-platform/internal/handoff"
	"github.com/wolfman30/dealer-ai-platform/internal/leads"
	"github.com/wolfman30/dealer-ai-platform/internal/llm"
	"github.com/wolfman30/dealer-ai-platform/internal/observability/metrics"
	"github.com/wolfman30/dealer-ai-platform/internal/session"
	"github.com/wolfman30/dealer-ai-platform/pkg/logging"
)

const memoryQueueBuffer = 256

// BuildCatalog picks the inventory source: S3 when a bucket and key are set,
// then a local CSV file, otherwise an empty catalog.
func BuildCatalog(cfg *appconfig.Config, s3Client catalog.S3API, logger *logging.Logger) *catalog.Service {
	if logger == nil {
		logger = logging.Default()
	}
	var source catalog.Source
	switch {
	case s3Client != nil && cfg.CatalogS3Bucket != "" && cfg.CatalogS3Key != "":
		source = catalog.S3Source{Client: s3Client, Bucket: cfg.CatalogS3Bucket, Key: cfg.CatalogS3Key}
		logger.Info("catalog source configured", "source", "s3", "bucket", cfg.CatalogS3Bucket, "key", cfg.CatalogS3Key)
	case strings.TrimSpace(cfg.CatalogPath) != "":
		source = catalog.FileSource{Path: cfg.CatalogPath}
		logger.Info("catalog source configured", "source", "file", "path", cfg.CatalogPath)
	default:
		source = catalog.StaticSource{}
		logger.Warn("no catalog configured; answering without inventory")
	}
	return catalog.NewService(source, cfg.CatalogRefreshInterval, logger)
}

// BuildCRMClient returns the Monday.com board client, or an in-memory board
// when credentials are missing so leads are still tracked for the session.
func BuildCRMClient(cfg *appconfig.Config, logger *logging.Logger) (crm.Client, string) {
	if !cfg.CRMEnabled() {
		return crm.NewMemoryClient(), "memory"
	}
	return crm.NewMondayClient(crm.MondayConfig{
		APIKey:   cfg.MondayAPIKey,
		Endpoint: cfg.MondayAPIURL,
		BoardID:  cfg.MondayBoardID,
		Columns: crm.Columns{
			Dedupe:          cfg.MondayDedupeColumnID,
			LastMessageID:   cfg.MondayLastMsgColumnID,
			Phone:           cfg.MondayPhoneColumnID,
			Stage:           cfg.MondayStageColumnID,
			Vehicle:         cfg.MondayVehicleColumnID,
			Payment:         cfg.MondayPaymentColumnID,
			Appointment:     cfg.MondayApptColumnID,
			AppointmentTime: cfg.MondayTimeColumnID,
		},
		Timeout:           cfg.CRMTimeout,
		RequestsPerSecond: cfg.MondayRequestsPerSec,
		Location:          cfg.Location(),
	}, logger), "monday"
}

// BuildGate creates the handoff gate from the dedup and silence settings.
func BuildGate(cfg *appconfig.Config) *handoff.Gate {
	return handoff.NewGate(handoff.Config{
		SilenceDuration: cfg.HandoffSilence,
		EchoWindow:      cfg.BotEchoWindow,
		Capacity:        cfg.DedupCapacity,
		RecentBotMemory: cfg.RecentBotMemory,
	})
}

// EngineDeps are the collaborators of the turn engine. Optional ones may be nil.
type EngineDeps struct {
	Gate      *handoff.Gate
	Sessions  session.Store
	Inventory catalog.Inventory
	LLM       llm.Client
	Messenger conversation.ReplyMessenger

	CRM       crm.Client
	Leads     leads.Repository
	Processed *events.ProcessedStore
	Notifier  conversation.LeadNotifier
	Metrics   *metrics.EngineMetrics
}

// BuildEngine assembles the pipeline and the engine.
func BuildEngine(cfg *appconfig.Config, deps EngineDeps, logger *logging.Logger) *conversation.Engine {
	if logger == nil {
		logger = logging.Default()
	}
	loc := cfg.Location()
	pipeline := conversation.NewPipeline(deps.LLM, conversation.PipelineConfig{
		AdvisorName:   cfg.AdvisorName,
		Location:      loc,
		Temperature:   float32(cfg.LLMTemperature),
		MaxTokens:     int32(cfg.LLMMaxTokens),
		PhotoPageSize: cfg.PhotoPageSize,
		FinancingInfo: cfg.FinancingInfo,
	}, logger)

	opts := []conversation.EngineOption{
		conversation.WithTurnDeadline(cfg.TurnDeadline),
		conversation.WithHistoryBudget(cfg.HistoryMaxChars),
		conversation.WithLocation(loc),
		conversation.WithEngineMetrics(deps.Metrics),
	}
	if deps.CRM != nil {
		opts = append(opts, conversation.WithUpserter(crm.NewUpserter(deps.CRM, deps.Gate, cfg.CRMTimeout, logger)))
	}
	if deps.Leads != nil {
		opts = append(opts, conversation.WithLeadsRepository(deps.Leads))
	}
	if deps.Processed != nil {
		opts = append(opts, conversation.WithProcessedEventsStore(deps.Processed))
	}
	if deps.Notifier != nil {
		opts = append(opts, conversation.WithLeadNotifier(deps.Notifier))
	}
	return conversation.NewEngine(deps.Gate, deps.Sessions, deps.Inventory, pipeline, deps.Messenger, logger, opts...)
}

// TurnRuntime is the queue pair feeding the engine: the publisher used by the
// webhooks and the worker draining into the dispatcher.
type TurnRuntime struct {
	Publisher *conversation.Publisher
	Worker    *conversation.Worker
	Backend   string
}

// BuildTurnRuntime wires the in-process queue, or SQS FIFO when
// USE_MEMORY_QUEUE=false. sqsClient is only read on the SQS path.
func BuildTurnRuntime(cfg *appconfig.Config, handler conversation.TurnHandler, dispatcher *conversation.Dispatcher, sqsClient *sqs.Client, logger *logging.Logger) TurnRuntime {
	if logger == nil {
		logger = logging.Default()
	}
	workerOpts := []conversation.WorkerOption{conversation.WithWorkerCount(cfg.WorkerCount)}
	if cfg.UseMemoryQueue || sqsClient == nil {
		queue := conversation.NewMemoryQueue(memoryQueueBuffer)
		return TurnRuntime{
			Publisher: conversation.NewPublisher(queue, logger),
			Worker:    conversation.NewWorker(handler, queue, dispatcher, logger, workerOpts...),
			Backend:   "memory",
		}
	}
	queue := conversation.NewSQSQueue(sqsClient, cfg.ConversationQueueURL)
	return TurnRuntime{
		Publisher: conversation.NewPublisher(queue, logger),
		Worker:    conversation.NewWorker(handler, queue, dispatcher, logger, workerOpts...),
		Backend:   "sqs",
	}
}

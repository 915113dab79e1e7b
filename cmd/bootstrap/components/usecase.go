package components

import (
	"expertbooking/internal/domain/policy"
	"expertbooking/internal/infra/payment"
	"expertbooking/internal/pkg/clock"
	"expertbooking/internal/pkg/config"
	"expertbooking/internal/usecase/commands"
	"expertbooking/internal/usecase/queries"
	"expertbooking/internal/usecase/shared"

	"go.uber.org/fx"
)

var UseCaseModule = fx.Module("usecase",
	usecaseBaseOption,
	usecaseGatewayModule,
	usecaseCommandsModule,
	usecaseQueriesModule,
)

var usecaseBaseOption = fx.Provide(
	clock.NewRealClock,
	NewPolicySelector,
)

var usecaseGatewayModule = fx.Module("usecase/gateway",
	fx.Provide(
		fx.Annotate(
			NewPaymentClient,
			fx.As(new(shared.PaymentGateway)),
		),
		fx.Annotate(
			NewWebhookVerifier,
			fx.As(new(commands.SignatureVerifier)),
		),
	),
)

var usecaseCommandsModule = fx.Module("usecase/commands",
	fx.Provide(
		NewBookingCommands,
		NewWebhookCommands,
		commands.NewReaperUseCase,
	),
)

var usecaseQueriesModule = fx.Module("usecase/queries",
	fx.Provide(
		queries.NewBookingQueries,
	),
)

func NewPolicySelector(cfg config.Config) *policy.Selector {
	return policy.NewSelector(policy.Config{
		InstantThreshold:     cfg.Booking.InstantThreshold,
		InstantPaymentWindow: cfg.Booking.InstantPaymentWindow,
		ReservationWindow:    cfg.Booking.ReservationWindow,
		ProviderMinWindow:    cfg.Provider.MinDelayedWindow,
		ProviderMaxWindow:    cfg.Provider.MaxDelayedWindow,
	})
}

func NewPaymentClient(cfg config.Config) *payment.Client {
	return payment.NewClient(cfg.Provider)
}

func NewWebhookVerifier(cfg config.Config) *payment.Verifier {
	return payment.NewVerifier(cfg.Provider.WebhookSecret)
}

func NewBookingCommands(
	uow shared.UnitOfWork,
	idem shared.IdempotencyCache,
	gateway shared.PaymentGateway,
	directory shared.ExpertDirectory,
	notifier shared.NotificationPublisher,
	selector *policy.Selector,
	cfg config.Config,
	clock clock.Clock,
) commands.BookingCommands {
	return commands.NewBookingUseCase(uow, idem, gateway, directory, notifier, selector, cfg.Booking, clock)
}

func NewWebhookCommands(
	uow shared.UnitOfWork,
	gateway shared.PaymentGateway,
	notifier shared.NotificationPublisher,
	verifier commands.SignatureVerifier,
	cfg config.Config,
	clock clock.Clock,
) commands.WebhookCommands {
	return commands.NewWebhookUseCase(uow, gateway, notifier, verifier, cfg.Provider.Name, cfg.Booking, clock)
}

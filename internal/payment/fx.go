package payment

import (
	"github.com/smallbiznis/invoicedesk/internal/payment/repository"
	"go.uber.org/fx"
)

var Module = fx.Module("payment.repository",
	fx.Provide(repository.Provide),
)

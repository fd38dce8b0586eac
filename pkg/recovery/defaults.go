package recovery

import (
	"time"

	"github.com/stepmill/stepmill/pkg/faults"
)

// DefaultStrategy returns the built-in recovery strategy for an error
// category. The coordinator installs these for every category; callers can
// override per category with Coordinator.RegisterStrategy.
func DefaultStrategy(category faults.Category) Strategy {
	switch category {
	case faults.CategoryNetwork:
		return &CompositeStrategy{
			ChainName: "network_recovery",
			Strategies: []Strategy{
				NewRetryStrategy(3, time.Second),
				&UserInterventionStrategy{
					Message: "Network connection issue. Please check your internet connection.",
				},
			},
		}
	case faults.CategoryAuthentication:
		return &UserInterventionStrategy{
			Message: "Authentication failed. Please check your credentials and try again.",
		}
	case faults.CategoryIntegration:
		return &CompositeStrategy{
			ChainName: "integration_recovery",
			Strategies: []Strategy{
				NewRetryStrategy(2, 2*time.Second),
				&UserInterventionStrategy{
					Message: "External service is temporarily unavailable. Please try again later.",
				},
			},
		}
	case faults.CategoryDatabase:
		s := NewRetryStrategy(3, 500*time.Millisecond)
		s.MaxDelay = 5 * time.Second

		return s
	case faults.CategoryValidation:
		return &UserInterventionStrategy{
			Message: "Please correct the input errors and try again.",
		}
	default:
		return NewRetryStrategy(2, time.Second)
	}
}

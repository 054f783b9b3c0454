package predict

import (
	"github.com/rs/zerolog/log"

	"github.com/IlyassOtmani/car-price-ml/internal/pipeline"
)

// LoadModel opens the artifact at path and enumerates its untrusted types
// before trusting any of them. A non-empty trusted list is enforced as given;
// an empty one trusts exactly the enumerated types and logs them.
func LoadModel(path string, trusted []string) (*pipeline.Model, error) {
	artifact, err := pipeline.Open(path)
	if err != nil {
		return nil, err
	}

	untrusted := artifact.UntrustedTypes()
	if len(untrusted) > 0 {
		if len(trusted) == 0 {
			log.Warn().Strs("types", untrusted).Msg("Trusting types found in the model artifact; set trusted_types to restrict them")
			trusted = untrusted
		} else {
			log.Info().Strs("types", untrusted).Msg("Model artifact uses untrusted types")
		}
	}
	return artifact.Build(trusted)
}

// +build property

package property

import (
	"strings"
	"testing"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"

	"github.com/evertran/koinonia-desktop/internal/token"
)

func TestProperty_GeneratedTokensAlwaysValidate(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 100

	properties := gopter.NewProperties(parameters)

	properties.Property("Every generated token matches the device token format",
		prop.ForAll(
			func(_ int) bool {
				tok := token.Generate()
				return token.IsValid(tok) && strings.HasPrefix(tok, "electron-fcm-")
			},
			gen.Int(),
		))

	properties.Property("Generated tokens have a 10 character suffix",
		prop.ForAll(
			func(_ int) bool {
				tok := token.Generate()
				parts := strings.Split(tok, "-")
				return len(parts) == 4 && len(parts[3]) == 10
			},
			gen.Int(),
		))

	properties.TestingRun(t)
}

func TestProperty_ArbitraryStringsRejected(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 100

	properties := gopter.NewProperties(parameters)

	properties.Property("Strings without the token prefix never validate",
		prop.ForAll(
			func(s string) bool {
				if strings.HasPrefix(s, "electron-fcm-") {
					return true
				}
				return !token.IsValid(s)
			},
			gen.AnyString(),
		))

	properties.TestingRun(t)
}

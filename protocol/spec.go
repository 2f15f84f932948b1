package protocol

import (
	"github.com/datazip-inc/olake-jdbc/types"
	"github.com/datazip-inc/olake-jdbc/utils/logger"
	"github.com/invopop/jsonschema"
	"github.com/spf13/cobra"
)

// configSchema describes a config type from its json and jsonschema tags,
// properties kept in field order and nested structs inlined
func configSchema(config any) *jsonschema.Schema {
	reflector := jsonschema.Reflector{
		Anonymous:                  true,
		ExpandedStruct:             true,
		DoNotReference:             true,
		RequiredFromJSONSchemaTags: true,
	}
	return reflector.Reflect(config)
}

// specCmd represents the spec command
var specCmd = &cobra.Command{
	Use:   "spec",
	Short: "spec command",
	RunE: func(_ *cobra.Command, _ []string) error {
		logger.LogMessage(types.Message{
			Type: types.SpecMessage,
			Spec: map[string]any{
				"type": connector.Type(),
				"spec": configSchema(connector.Spec()),
			},
		})
		return nil
	},
}

package cmd

import (
	"fmt"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/deploymenttheory/go-its/pkg/app"
)

// addTargetFlags registers the owner flag shared by the asset commands
func addTargetFlags(cmd *cobra.Command, owner *int32) {
	cmd.Flags().Int32Var(owner, "owner", 1, "client id owning the asset (negative ids are non-secure clients)")
}

// parseTarget builds an asset target from the uid argument
func parseTarget(owner int32, uidArg string) (app.AssetTarget, error) {
	uid, err := strconv.ParseUint(uidArg, 0, 64)
	if err != nil {
		return app.AssetTarget{}, app.NewError(app.ErrCodeInvalidInput, fmt.Sprintf("invalid uid %q", uidArg), err)
	}
	return app.AssetTarget{Owner: owner, UID: uid}, nil
}

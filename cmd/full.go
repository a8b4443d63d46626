/*
Copyright © 2020 NAME HERE <EMAIL ADDRESS>

Licensed under the Apache License, Version 2.0 (the "License");
you may not use this file except in compliance with the License.
You may obtain a copy of the License at

    http://www.apache.org/licenses/LICENSE-2.0

Unless required by applicable law or agreed to in writing, software
distributed under the License is distributed on an "AS IS" BASIS,
WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
See the License for the specific language governing permissions and
limitations under the License.
*/
package cmd

import (
	"context"

	"github.com/packagewjx/spark-resource-advisor/internal/agent"
	"github.com/spf13/cobra"
)

// fullCmd represents the full command
var fullCmd = &cobra.Command{
	Use:   "full",
	Short: "依次执行profile、analyse与recommend",
	RunE: func(cmd *cobra.Command, args []string) error {
		return runAction(func(a *agent.Agent, ctx context.Context) error {
			return a.Full(ctx)
		})
	},
}

func init() {
	rootCmd.AddCommand(fullCmd)
}

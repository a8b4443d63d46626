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

// profileCmd represents the profile command
var profileCmd = &cobra.Command{
	Use:   "profile",
	Short: "采集所有集群的作业与executor指标并入库",
	Long: "从每个集群的YARN ResourceManager获取应用列表，从Spark History Server获取\n" +
		"executor指标，归一化后写入数据库。同一作业重复采集只会更新记录。\n" +
		"单个集群失败不影响其他集群，只有全部集群失败时本命令才返回错误。\n",
	RunE: func(cmd *cobra.Command, args []string) error {
		return runAction(func(a *agent.Agent, ctx context.Context) error {
			return a.Profile(ctx)
		})
	},
}

func init() {
	rootCmd.AddCommand(profileCmd)
}

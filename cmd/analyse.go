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

// analyseCmd represents the analyse command
var analyseCmd = &cobra.Command{
	Use:   "analyse",
	Short: "计算平均资源用量并为作业划分SLA类别",
	Long: "对所有已采集的作业计算平均CPU与内存用量，按运行时长划分SLA类别。\n" +
		"自定义SLA文件中的条目优先于阈值计算，应用ID匹配优先于名称匹配。\n" +
		"分类是确定性的，重复执行不会改变结果。\n",
	RunE: func(cmd *cobra.Command, args []string) error {
		return runAction(func(a *agent.Agent, ctx context.Context) error {
			return a.Analyse(ctx)
		})
	},
}

func init() {
	rootCmd.AddCommand(analyseCmd)
}

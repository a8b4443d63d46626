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

// recommendCmd represents the recommend command
var recommendCmd = &cobra.Command{
	Use:   "recommend",
	Short: "为已分析的作业生成资源配置建议",
	Long: "按启发式公式为每个已分析的作业计算executor数量、核数与内存。配置了OpenAI\n" +
		"密钥时会参考模型给出的建议，但每个数值都会被约束到部署级的安全范围内。\n" +
		"每次执行为作业追加一个新版本的建议，历史版本不会被修改。\n",
	RunE: func(cmd *cobra.Command, args []string) error {
		return runAction(func(a *agent.Agent, ctx context.Context) error {
			return a.Recommend(ctx)
		})
	},
}

func init() {
	rootCmd.AddCommand(recommendCmd)
}

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
	"fmt"
	"os"
	"strings"

	"github.com/mitchellh/go-homedir"
	"github.com/packagewjx/spark-resource-advisor/internal/agent"
	"github.com/packagewjx/spark-resource-advisor/internal/config"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

var cfgFile string

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "spark-resource-advisor",
	Short: "Spark作业画像与资源建议工具",
	Long: "本工具从各集群的YARN ResourceManager与Spark History Server采集作业运行指标，\n" +
		"按运行时长为作业划分SLA类别，并生成经过范围约束的资源配置建议。\n" +
		"四个子命令profile、analyse、recommend与full都可以安全地重复执行。\n",
}

// Execute adds all child commands to the root command and sets flags appropriately.
// This is called by main.main(). It only needs to happen once to the rootCmd.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Println(err)
		os.Exit(1)
	}
}

func init() {
	cobra.OnInitialize(initConfig)

	rootCmd.PersistentFlags().StringVarP(&cfgFile, "config", "c", "",
		"配置文件路径（JSON或YAML）。默认为$HOME/.spark-resource-advisor.yaml")
}

// initConfig reads in config file and ENV variables if set.
func initConfig() {
	if cfgFile != "" {
		// Use config file from the flag.
		viper.SetConfigFile(cfgFile)
	} else {
		// Find home directory.
		home, err := homedir.Dir()
		if err != nil {
			fmt.Println(err)
			os.Exit(1)
		}

		// Search config in home directory with name ".spark-resource-advisor" (without extension).
		viper.AddConfigPath(home)
		viper.SetConfigName(".spark-resource-advisor")
	}

	// 环境变量优先于配置文件，例如SRA_MYSQL_HOST对应mysql.host
	viper.SetEnvPrefix("SRA")
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	viper.AutomaticEnv() // read in environment variables that match

	// If a config file is found, read it in.
	if err := viper.ReadInConfig(); err == nil {
		fmt.Println("Using config file:", viper.ConfigFileUsed())
	}
}

// runAction 构造Agent并在运行级超时内执行一个流水线动作
func runAction(action func(a *agent.Agent, ctx context.Context) error) error {
	cfg, err := config.FromViper(viper.GetViper())
	if err != nil {
		return err
	}

	a, err := agent.New(cfg)
	if err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(context.Background(), cfg.RunTimeout)
	defer cancel()

	return action(a, ctx)
}

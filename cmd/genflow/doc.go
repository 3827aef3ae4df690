// Copyright (c) AgentFlow Authors.
// Licensed under the MIT License.

/*
Package main 提供 genflow 命令行入口。

# 概述

cmd/genflow 把一次生成调用从命令行送到配置的 chat-completion 后端，
并按管线的方式记录遥测事件、Prometheus 指标与 OpenTelemetry span。
配置来自 YAML 文件与 GENFLOW_ 前缀的环境变量。

# 子命令

  - generate：单次调用，打印文本或完整 JSON 响应
  - stream：流式调用，逐块打印文本
  - providers：列出内置后端策略
  - version：打印构建信息

# 主要能力

  - 请求来源：--prompt/--system 或 --request 指定的 JSON 文件（"-" 为标准输入）
  - Metrics 服务器：--metrics-addr 或 metrics.enabled 时暴露 /metrics 与 /healthz，
    --linger 让端点在调用结束后继续可抓取
  - 优雅关闭：SIGINT/SIGTERM 取消进行中的调用，退出前刷新遥测队列
  - 构建注入：Version、BuildTime、GitCommit 通过 ldflags 设置
*/
package main

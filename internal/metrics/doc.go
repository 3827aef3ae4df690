// 版权所有 2024 AgentFlow Authors. 版权所有。
// 此源代码的使用由 MIT 许可规范,该许可可以是
// 在LICENSE文件中找到。

/*
包 metrics 提供基于 Prometheus 的生成调用指标采集能力。

# 概述

本包通过 Collector 统一注册和记录 Prometheus 指标，使用 promauto.With
注册到调用方给定的 Registerer（默认为全局 Registerer）。所有指标按
namespace 隔离，便于 Grafana 等工具进行可视化与告警。

# 核心类型

  - Collector：指标收集器，持有 Counter、Histogram 等 Prometheus 向量指标。
  - Tokens：一次调用的 Token 用量（prompt/completion/cached/thoughts）。

# 主要能力

  - 调用指标：调用总数与耗时，按 provider/model/mode/status 分组，
    mode 区分 sync 与 stream。
  - 错误指标：按 provider 与错误分类计数。
  - Token 与成本：按 provider/model/type 统计 Token，按 provider/model 累计成本。
  - 流式指标：每次完整流式调用输出的分片数分布。
  - 遥测：被丢弃的遥测事件计数。
*/
package metrics

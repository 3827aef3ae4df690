// 版权所有 2024 AgentFlow Authors. 版权所有。
// 此源代码的使用由 MIT 许可规范,该许可可以是
// 在LICENSE文件中找到。

/*
包 observability 提供生成调用的可观测性能力，涵盖 OpenTelemetry
指标、Span 追踪与成本核算。

# 概述

本包基于 OpenTelemetry 标准，为每一次管线调用打开一个 Span
（genflow.generate 或 genflow.generate_stream），并在调用结束时记录
延迟、Token 消耗、流式分片数、错误分类与估算成本。

默认使用全局 TracerProvider / MeterProvider；未初始化 SDK 时它们是
noop 实现，不产生任何开销。测试中可通过 WithTracerProvider 与
WithMeterProvider 注入 SDK 实例。

# 核心类型

  - Metrics：基于 OTel Tracer 与 Meter 的调用观测器，提供 StartCall / EndCall。
    nil 接收者是合法的，所有方法均为空操作。
  - CallAttrs / Outcome：调用属性与调用结果。
  - CostCalculator：成本计算器，内置常用模型价格表，支持通配 Provider
    与带日期后缀模型名的前缀匹配。
  - CostTracker：会话级成本追踪器，汇总 Token 与费用。
*/
package observability

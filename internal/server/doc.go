// 版权所有 2024 AgentFlow Authors. 版权所有。
// 此源代码的使用由 MIT 许可规范,该许可可以是
// 在LICENSE文件中找到。

/*
包 server 提供后台 HTTP 服务器的生命周期管理，genflow 用它暴露
Prometheus 指标端点。

# 核心类型

  - Manager：持有 http.Server、net.Listener 与异步错误通道，提供
    Start/Shutdown/WaitForShutdown 等生命周期方法。
  - Config：监听地址、读写超时、空闲超时与优雅关闭超时。
  - MetricsHandler：在 /metrics 上输出指定 Gatherer 的指标，
    在 /healthz 上提供存活探针。

# 主要能力

  - 非阻塞启动：Start 在后台 goroutine 中运行服务。
  - 优雅关闭：Shutdown 在配置的超时内排空请求，重复调用是空操作。
  - 信号监听：WaitForShutdown 监听 SIGINT/SIGTERM 与 ctx 取消。
  - 错误传播：Errors() 返回异步错误通道。
*/
package server

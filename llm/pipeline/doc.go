// 版权所有 2024 AgentFlow Authors. 版权所有。
// 此源代码的使用由 MIT 许可规范,该许可可以是
// 在LICENSE文件中找到。

/*
包 pipeline 编排一次生成调用：规范请求 → 后端线格式 → 传输 → 规范响应，
并在成功或失败时写入遥测。

# 单次调用

	p, err := pipeline.New(cfg,
		pipeline.WithTelemetry(recorder),
		pipeline.WithLogger(logger),
	)
	resp, err := p.Execute(ctx, req, requestID)

# 流式调用

ExecuteStream 返回一个拉取式的 Stream。消费者不调用 Recv 时不会读取任何后端数据。
后端把 finish_reason 与最终 usage 拆到两个分片时，Stream 会先持有结束分片，
等到 usage 分片到达后合并为一个分片再交付：

	s, err := p.ExecuteStream(ctx, req, requestID)
	if err != nil {
		return err
	}
	for chunk, err := range s.Chunks() {
		if err != nil {
			return err // 已交付的分片仍然有效
		}
		fmt.Print(chunk.Text())
	}

中途放弃时调用 Close 释放连接；被关闭的流不会记录成功事件。

Pipeline 可被多个 goroutine 并发使用。每次调用拥有独立的 RequestContext
与转换器状态，唯一共享的是只读的策略与传输客户端。管线本身从不重试。
*/
package pipeline

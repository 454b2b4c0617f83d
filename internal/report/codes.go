package report

// ============================================================================
// 分析器问题码 (A 开头)
// ============================================================================

const (
	// A0100-A0199: 变量问题
	A0100 = "A0100" // 未定义的变量
	A0101 = "A0101" // 可能未定义的变量

	// A0200-A0299: 类型问题
	A0200 = "A0200" // 类型不匹配
	A0201 = "A0201" // 返回类型不匹配
	A0202 = "A0202" // 参数类型不匹配
	A0203 = "A0203" // 对可空类型的不安全访问

	// A0300-A0399: 调用问题
	A0300 = "A0300" // 未定义的函数
	A0301 = "A0301" // 参数数量错误

	// A0400-A0499: 类/对象问题
	A0400 = "A0400" // 未定义的类
	A0401 = "A0401" // 未定义的方法
	A0402 = "A0402" // 未定义的属性

	// A0500-A0599: 可达性问题
	A0500 = "A0500" // 不可达代码
	A0501 = "A0501" // 恒真条件（冗余检查）
	A0502 = "A0502" // 恒假条件（不可能检查）

	// A0600-A0699: 数据流问题
	A0600 = "A0600" // 未使用的赋值
	A0601 = "A0601" // 污点从源流到汇
)

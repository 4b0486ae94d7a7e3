package evaluation

const evaluationInstruction = `
# 任务背景
你是一位资深的中文 NLP 语言学家，专门从事地理空间实体识别 (Geo-NER)。你的任务是对一组文本进行“传统分词”与“MGeo 分词”的对比分析。

# 层级字典
采用【%s】标准，包含以下详细层级字典定义（层级ID | 名称 | 别名 | 建议词性 | 示例 | 说明）：
%s
%s
# 重要要求
1. 如果提供了外部接口结果，请基于这些分词进行深入的语言学评估。
2. 对于 MGeo 分词，必须严格映射到上述字典中的层级标准，特别是考虑层级说明和示例。
3. 如果外部结果中带有 ^id 标识，请验证该 ID 是否正确反映了其在字典中的层级（levelIndex）。
4. levelIndex 属性应为该词语对应的层级在字典中的 1-based 索引。
5. categoryName 属性应使用字典中该层级对应的“别名”。
6. pos 属性应参考字典中建议的“词性”。

# 评分原则
- 基于指定的标准权重（Recall: %d%%, Precision: %d%%, Accuracy: %d%%, Consistency: %d%%）计算最终评分。
- overallScore 必须等于四项指标得分按上述权重的加权和。
- 重点核对 MGeo 是否符合其层级定义中的“说明”和“典型示例”。

# 输出格式
分析内容必须使用中文，并严格按照给定的 JSON Schema 返回结果。
`

const externalContext = `
# 外部分词结果
以下是外部接口提供的初步分词结果（请优先评估这些结果）：
%s
注意：外部结果中 "text^id" 格式的 id 对应字典定义中的“层级ID”。如果 id 为 18 或 24 等，请核对是否符合相应的层级定义。
`

const externalSample = `
样本 %d:
传统分词 (old): %s
MGeo分词 (new): %s
`

const evaluationPrompt = `
# 待评估文本
对比并评估以下文本的分词效果：
%s

# 要求
1. 为每条文本生成详细的分词对象列表（包含文本、词性、层级索引、别名、置信度）。
2. 基于提供的详细字典标准，为每条文本的两种方法分别进行加权打分 (0-100)。
3. 汇总整个批量的表现，计算平均分并提供核心洞察。
`

const emptyDictionary = "（当前未定义任何层级）"

const (
	hintMissing = "未提供"
	hintEmpty   = "(无分词结果)"
)

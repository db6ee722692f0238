package prompt

const storyTaskTypes = `# Task Types
- write: write a part of the story. Only write tasks may be split into further write tasks.
- think: design work for the story, such as characters, plot arcs, settings and chapter outlines.
Stories are written from imagination; there are no search tasks.`

const storyAtomSystem = `You are a recursive story-writing planning expert. Decide whether the given writing task can be written directly (atomic) or must first be split into design and writing sub-tasks (complex).

` + storyTaskTypes + `

Answer in this exact form:
<think>
your reasoning
</think>
<atomic_task_determination>
atomic or complex
</atomic_task_determination>`

const storyAtomUpdateSystem = `You are a recursive story-writing planning expert. The design tasks the given writing task depends on have finished. First refine the goal of the writing task with what they decided, then decide whether it can be written directly (atomic) or must be split further (complex).

` + storyTaskTypes + `

Answer in this exact form:
<think>
your reasoning
</think>
<goal_updating>
the refined goal
</goal_updating>
<atomic_task_determination>
atomic or complex
</atomic_task_determination>`

const storyAtomUser = `The story requested by the user: **{{.RootQuestion}}**

The current overall plan:
{{.FullPlan}}

Design decisions from higher levels of the plan:
{{.OuterDependent}}

Design decisions this task depends on:
{{.SameDependent}}

The story written so far:
{{.Article}}

Judge this writing task: **{{.Task}}**`

const storyPlanSystem = `You are a recursive story-writing planning expert. Split the given writing task into think and write sub-tasks that together produce it.

` + storyTaskTypes + `

# Rules
1. Give every sub-task an id of the form <parent id>.<n>, starting at 1.
2. dependency lists the ids of sibling tasks whose results are required.
3. write tasks carry a length; the lengths add up to the parent length.
4. A think task may carry sub_tasks when it should itself be split.

Answer in this exact form:
<think>
your reasoning
</think>
<result>
{"id": "...", "task_type": "write", "goal": "...", "dependency": [], "length": "...", "sub_tasks": [{"id": "...", "task_type": "think|write", "goal": "...", "dependency": [], "length": "..."}]}
</result>`

const storyPlanUser = `The story requested by the user: **{{.RootQuestion}}**

Reasoning recorded when this task was judged:
{{.CandidateThink}}

The current overall plan:
{{.FullPlan}}

Design decisions from higher levels of the plan:
{{.OuterDependent}}

Design decisions this task depends on:
{{.SameDependent}}

The story written so far:
{{.Article}}

Plan this writing task: **{{.Task}}**`

const storyWriteSystem = `You are a novelist writing one passage of a longer story. Continue seamlessly from the story so far, follow the design decisions you are given, and write only the passage requested.

Put the passage, and nothing else, inside <article></article>.`

const storyWriteUser = `The story requested by the user: **{{.RootQuestion}}**

Design decisions from higher levels of the plan:
{{.OuterDependent}}

Design decisions this passage depends on:
{{.SameDependent}}

The story written so far:
{{.Article}}

Write this passage: **{{.Task}}**`

const storyReasonSystem = `You are a story designer. Carry out the given design task so the writers who depend on it can follow it precisely.

Put the design inside <result></result>.`

const storyReasonUser = `The story requested by the user: **{{.RootQuestion}}**

Design decisions from higher levels of the plan:
{{.OuterDependent}}

Design decisions this task depends on:
{{.SameDependent}}

The story written so far:
{{.Article}}

Complete this design task: **{{.Task}}**`

const storyAggregateSystem = `Several design sub-tasks of a story have finished. Merge their results into one consistent design, resolving contradictions in favour of later decisions.

Put the merged design inside <result></result>.`

const storyAggregateUser = `The story requested by the user: **{{.RootQuestion}}**

The parent design task: **{{.Task}}**

Results of the sub-tasks:
{{.FinalAggregate}}`

func init() {
	register(ModeStory, RoleAtom, storyAtomSystem, storyAtomUser)
	register(ModeStory, RoleAtomUpdate, storyAtomUpdateSystem, storyAtomUser)
	register(ModeStory, RolePlan, storyPlanSystem, storyPlanUser)
	register(ModeStory, RoleWrite, storyWriteSystem, storyWriteUser)
	register(ModeStory, RoleReason, storyReasonSystem, storyReasonUser)
	register(ModeStory, RoleAggregate, storyAggregateSystem, storyAggregateUser)
}

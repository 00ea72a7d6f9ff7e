package sqlinline

const QRecentGenerations = `--sql 9c1b74e3-52aa-4d0e-9f6d-2e1a87c40b11
select id, kind, status, prompt, model, external_task_id, output_url, error_message, cost_usd, created_at, completed_at
from generations
order by created_at desc
limit $1;
`